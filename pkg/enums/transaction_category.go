package enums

import "fmt"

// TransactionCategory is the closed set of ledger entry categories.
//
// Categories are partitioned into system-only values that the reconciler
// writes and manual values that finance staff may record by hand. Each
// category carries a fixed transaction type.
type TransactionCategory string

const (
	// System-only categories.
	TransactionCategoryCustomerPayment TransactionCategory = "customer_payment"
	TransactionCategoryRefund          TransactionCategory = "refund"
	TransactionCategorySupplierPayment TransactionCategory = "supplier_payment"

	// Manual categories.
	TransactionCategoryOtherIncome TransactionCategory = "other_income"
	TransactionCategoryRent        TransactionCategory = "rent"
	TransactionCategoryUtilities   TransactionCategory = "utilities"
	TransactionCategorySalary      TransactionCategory = "salary"
)

var transactionCategoryTypes = map[TransactionCategory]TransactionType{
	TransactionCategoryCustomerPayment: TransactionTypeInflow,
	TransactionCategoryRefund:          TransactionTypeOutflow,
	TransactionCategorySupplierPayment: TransactionTypeOutflow,
	TransactionCategoryOtherIncome:     TransactionTypeInflow,
	TransactionCategoryRent:            TransactionTypeOutflow,
	TransactionCategoryUtilities:       TransactionTypeOutflow,
	TransactionCategorySalary:          TransactionTypeOutflow,
}

var systemOnlyCategories = map[TransactionCategory]bool{
	TransactionCategoryCustomerPayment: true,
	TransactionCategoryRefund:          true,
	TransactionCategorySupplierPayment: true,
}

// String implements fmt.Stringer.
func (c TransactionCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known TransactionCategory.
func (c TransactionCategory) IsValid() bool {
	_, ok := transactionCategoryTypes[c]
	return ok
}

// IsSystemOnly reports whether only the reconciler may write this category.
func (c TransactionCategory) IsSystemOnly() bool {
	return systemOnlyCategories[c]
}

// Type returns the transaction type fixed for this category.
func (c TransactionCategory) Type() (TransactionType, error) {
	t, ok := transactionCategoryTypes[c]
	if !ok {
		return "", fmt.Errorf("invalid transaction category %q", c)
	}
	return t, nil
}

// ParseTransactionCategory converts raw input into a TransactionCategory.
func ParseTransactionCategory(value string) (TransactionCategory, error) {
	candidate := TransactionCategory(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid transaction category %q", value)
	}
	return candidate, nil
}
