package enums

import "fmt"

// TransactionMethod names how the money for a ledger entry moved.
type TransactionMethod string

const (
	TransactionMethodCash         TransactionMethod = "cash"
	TransactionMethodBankTransfer TransactionMethod = "bank_transfer"
	TransactionMethodGateway      TransactionMethod = "gateway"
)

var validTransactionMethods = []TransactionMethod{
	TransactionMethodCash,
	TransactionMethodBankTransfer,
	TransactionMethodGateway,
}

// String implements fmt.Stringer.
func (m TransactionMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known TransactionMethod.
func (m TransactionMethod) IsValid() bool {
	for _, candidate := range validTransactionMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseTransactionMethod converts raw input into a TransactionMethod.
func ParseTransactionMethod(value string) (TransactionMethod, error) {
	for _, candidate := range validTransactionMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction method %q", value)
}
