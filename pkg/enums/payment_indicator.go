package enums

// PaymentIndicator is the display projection of an eligibility record. It is
// derived, never stored.
type PaymentIndicator string

const (
	PaymentIndicatorPaid           PaymentIndicator = "paid"
	PaymentIndicatorBlocked        PaymentIndicator = "blocked"
	PaymentIndicatorOverdue        PaymentIndicator = "overdue"
	PaymentIndicatorEligibleDue    PaymentIndicator = "eligible_due"
	PaymentIndicatorEligibleNotDue PaymentIndicator = "eligible_not_due"
	PaymentIndicatorNotDue         PaymentIndicator = "not_due"
)

// String implements fmt.Stringer.
func (i PaymentIndicator) String() string {
	return string(i)
}
