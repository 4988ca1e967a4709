package enums

import "fmt"

// TransactionRefType names the kind of business object a ledger entry is
// linked to. The zero value means the entry stands alone.
type TransactionRefType string

const (
	TransactionRefNone        TransactionRefType = ""
	TransactionRefOrder       TransactionRefType = "order"
	TransactionRefSupplyOrder TransactionRefType = "supply_order"
)

var validTransactionRefTypes = []TransactionRefType{
	TransactionRefOrder,
	TransactionRefSupplyOrder,
}

// String implements fmt.Stringer.
func (t TransactionRefType) String() string {
	return string(t)
}

// IsValid reports whether the value names a referencable object kind.
func (t TransactionRefType) IsValid() bool {
	for _, candidate := range validTransactionRefTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionRefType converts raw input into a TransactionRefType.
func ParseTransactionRefType(value string) (TransactionRefType, error) {
	if value == "" {
		return TransactionRefNone, nil
	}
	for _, candidate := range validTransactionRefTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction ref type %q", value)
}
