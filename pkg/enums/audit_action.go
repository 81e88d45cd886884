package enums

import "fmt"

// AuditAction maps to the audit_action_enum enum in Postgres.
type AuditAction string

const (
	AuditActionMilestoneCreated        AuditAction = "milestone_created"
	AuditActionMilestoneTransitioned   AuditAction = "milestone_transitioned"
	AuditActionEvidenceSubmitted       AuditAction = "evidence_submitted"
	AuditActionEvidenceReviewed        AuditAction = "evidence_reviewed"
	AuditActionEligibilityRecalculated AuditAction = "eligibility_recalculated"
	AuditActionPaymentBlocked          AuditAction = "payment_blocked"
	AuditActionPaymentUnblocked        AuditAction = "payment_unblocked"
	AuditActionPaymentMarkedPaid       AuditAction = "payment_marked_paid"
)

var validAuditActions = []AuditAction{
	AuditActionMilestoneCreated,
	AuditActionMilestoneTransitioned,
	AuditActionEvidenceSubmitted,
	AuditActionEvidenceReviewed,
	AuditActionEligibilityRecalculated,
	AuditActionPaymentBlocked,
	AuditActionPaymentUnblocked,
	AuditActionPaymentMarkedPaid,
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
