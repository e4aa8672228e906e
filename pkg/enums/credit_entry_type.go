package enums

import "fmt"

// CreditEntryType tags a ledger entry with the business event that produced it.
type CreditEntryType string

const (
	CreditEntryTypeCredit     CreditEntryType = "credit"
	CreditEntryTypeDebit      CreditEntryType = "debit"
	CreditEntryTypeAdjustment CreditEntryType = "adjustment"
	CreditEntryTypePromo      CreditEntryType = "promo"
)

var validCreditEntryTypes = []CreditEntryType{
	CreditEntryTypeCredit,
	CreditEntryTypeDebit,
	CreditEntryTypeAdjustment,
	CreditEntryTypePromo,
}

// String implements fmt.Stringer.
func (t CreditEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known CreditEntryType.
func (t CreditEntryType) IsValid() bool {
	for _, candidate := range validCreditEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCreditEntryType converts raw input into a CreditEntryType.
func ParseCreditEntryType(value string) (CreditEntryType, error) {
	for _, candidate := range validCreditEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit entry type %q", value)
}
