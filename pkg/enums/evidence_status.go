package enums

import "fmt"

// EvidenceStatus maps to the evidence_status_enum enum in Postgres.
type EvidenceStatus string

const (
	EvidenceStatusSubmitted EvidenceStatus = "submitted"
	EvidenceStatusApproved  EvidenceStatus = "approved"
	EvidenceStatusRejected  EvidenceStatus = "rejected"
)

var validEvidenceStatuses = []EvidenceStatus{
	EvidenceStatusSubmitted,
	EvidenceStatusApproved,
	EvidenceStatusRejected,
}

// IsValid reports whether the value is a known EvidenceStatus.
func (s EvidenceStatus) IsValid() bool {
	for _, candidate := range validEvidenceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsReviewed reports whether the evidence has already received its one review.
func (s EvidenceStatus) IsReviewed() bool {
	return s == EvidenceStatusApproved || s == EvidenceStatusRejected
}

// ParseEvidenceStatus converts raw input into an EvidenceStatus.
func ParseEvidenceStatus(value string) (EvidenceStatus, error) {
	for _, candidate := range validEvidenceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid evidence status %q", value)
}
