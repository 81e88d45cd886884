package enums

import "fmt"

// BlockReason maps to the block_reason_enum enum in Postgres.
type BlockReason string

const (
	BlockReasonQualityIssue         BlockReason = "quality_issue"
	BlockReasonContractDispute      BlockReason = "contract_dispute"
	BlockReasonMissingDocumentation BlockReason = "missing_documentation"
	BlockReasonBudgetHold           BlockReason = "budget_hold"
	BlockReasonOther                BlockReason = "other"
)

var validBlockReasons = []BlockReason{
	BlockReasonQualityIssue,
	BlockReasonContractDispute,
	BlockReasonMissingDocumentation,
	BlockReasonBudgetHold,
	BlockReasonOther,
}

// IsValid reports whether the value is a known BlockReason.
func (r BlockReason) IsValid() bool {
	for _, candidate := range validBlockReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseBlockReason converts raw input into a BlockReason.
func ParseBlockReason(value string) (BlockReason, error) {
	for _, candidate := range validBlockReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid block reason %q", value)
}
