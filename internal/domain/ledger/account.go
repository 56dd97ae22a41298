package ledger

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// AccountType determines how debits and credits move an account's balance
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// IsValid checks if the account type is one of the five supported types
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// String returns the string representation of AccountType
func (t AccountType) String() string {
	return string(t)
}

// IsDebitNormal reports whether a debit increases accounts of this type
func (t AccountType) IsDebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// SignedDelta returns the balance change a line with the given debit and credit
// causes on an account of this type.
//
// asset, expense:            debit - credit
// liability, equity, revenue: credit - debit
func (t AccountType) SignedDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if t.IsDebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

var (
	accountCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-_]{0,31}$`)
	currencyPattern    = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Account is a node in a tenant's chart of accounts
type Account struct {
	shared.TenantAggregateRoot
	Code           string
	Name           string
	Description    string
	Type           AccountType
	ParentID       *uuid.UUID
	Currency       string
	CurrentBalance decimal.Decimal
	IsActive       bool
	IsSystem       bool
	DeactivatedAt  *time.Time
}

// NewAccount creates a new active account with a zero balance
func NewAccount(tenantID uuid.UUID, code, name string, accountType AccountType, currency string) (*Account, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID cannot be empty")
	}
	code = strings.TrimSpace(code)
	if !accountCodePattern.MatchString(code) {
		return nil, NewValidationError("Invalid account code %q", code)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("Account name cannot be empty")
	}
	if len(name) > 200 {
		return nil, NewValidationError("Account name cannot exceed 200 characters")
	}
	if !accountType.IsValid() {
		return nil, NewValidationError("Invalid account type %q", accountType)
	}
	if !currencyPattern.MatchString(currency) {
		return nil, NewValidationError("Invalid currency code %q", currency)
	}

	account := &Account{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                name,
		Type:                accountType,
		Currency:            currency,
		CurrentBalance:      decimal.Zero,
		IsActive:            true,
	}

	account.AddDomainEvent(NewAccountCreatedEvent(account))

	return account, nil
}

// SetParent places the account under parent in the chart of accounts.
// The parent must belong to the same tenant and share the account type.
func (a *Account) SetParent(parent *Account) error {
	if parent == nil {
		a.ParentID = nil
		return nil
	}
	if parent.TenantID != a.TenantID {
		return NewValidationError("Parent account belongs to another tenant")
	}
	if parent.ID == a.ID {
		return NewValidationError("Account cannot be its own parent")
	}
	if parent.Type != a.Type {
		return NewValidationError("Parent account %s is %s, expected %s", parent.Code, parent.Type, a.Type)
	}
	a.ParentID = &parent.ID
	return nil
}

// MarkSystem protects the account from deactivation
func (a *Account) MarkSystem() {
	a.IsSystem = true
}

// Deactivate blocks future journal lines against the account.
// History and the running balance are left untouched.
func (a *Account) Deactivate() error {
	if a.IsSystem {
		return NewInvalidStateError("account", a.ID, "system", "deactivate")
	}
	if !a.IsActive {
		return NewInvalidStateError("account", a.ID, "inactive", "deactivate")
	}

	now := time.Now().UTC()
	a.IsActive = false
	a.DeactivatedAt = &now
	a.Touch(now)
	a.IncrementVersion()

	a.AddDomainEvent(NewAccountDeactivatedEvent(a))

	return nil
}

// Activate re-enables a deactivated account
func (a *Account) Activate() error {
	if a.IsActive {
		return NewInvalidStateError("account", a.ID, "active", "activate")
	}
	a.IsActive = true
	a.DeactivatedAt = nil
	a.Touch(time.Now().UTC())
	a.IncrementVersion()
	return nil
}

// StatusLabel returns "active" or "inactive"
func (a *Account) StatusLabel() string {
	if a.IsActive {
		return "active"
	}
	return "inactive"
}

// applyDelta moves the running balance. Only journal posting and voiding call it.
func (a *Account) applyDelta(delta decimal.Decimal, at time.Time) {
	a.CurrentBalance = a.CurrentBalance.Add(delta)
	a.Touch(at)
}

// DebitCreditColumns splits the balance into trial-balance columns.
// A debit-normal account with a positive balance lands in the debit column,
// a negative one in the credit column, and the reverse for credit-normal accounts.
func (a *Account) DebitCreditColumns() (debit, credit decimal.Decimal) {
	balance := a.CurrentBalance
	if a.Type.IsDebitNormal() {
		if balance.IsNegative() {
			return decimal.Zero, balance.Neg()
		}
		return balance, decimal.Zero
	}
	if balance.IsNegative() {
		return balance.Neg(), decimal.Zero
	}
	return decimal.Zero, balance
}
