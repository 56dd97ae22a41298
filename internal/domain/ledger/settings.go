package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountRole is a logical posting target that a tenant maps to a concrete account
type AccountRole string

const (
	RoleCash               AccountRole = "cash"
	RoleAccountsReceivable AccountRole = "accounts_receivable"
	RoleAccountsPayable    AccountRole = "accounts_payable"
	RoleRevenue            AccountRole = "revenue"
	RoleTaxPayable         AccountRole = "tax_payable"
	RoleTaxExpense         AccountRole = "tax_expense"
	RoleExpense            AccountRole = "expense"
)

// AllAccountRoles lists every role
func AllAccountRoles() []AccountRole {
	return []AccountRole{
		RoleCash, RoleAccountsReceivable, RoleAccountsPayable,
		RoleRevenue, RoleTaxPayable, RoleTaxExpense, RoleExpense,
	}
}

// IsValid checks if the role is known
func (r AccountRole) IsValid() bool {
	switch r {
	case RoleCash, RoleAccountsReceivable, RoleAccountsPayable, RoleRevenue,
		RoleTaxPayable, RoleTaxExpense, RoleExpense:
		return true
	}
	return false
}

// String returns the string representation of AccountRole
func (r AccountRole) String() string {
	return string(r)
}

// ExpectedType is the account type a role must be mapped to
func (r AccountRole) ExpectedType() AccountType {
	switch r {
	case RoleCash, RoleAccountsReceivable:
		return AccountTypeAsset
	case RoleAccountsPayable, RoleTaxPayable:
		return AccountTypeLiability
	case RoleRevenue:
		return AccountTypeRevenue
	default:
		return AccountTypeExpense
	}
}

// DefaultPaymentTermDays is the invoice due-date offset when a tenant sets none
const DefaultPaymentTermDays = 30

// TenantSettings is the ledger configuration a tenant supplies
type TenantSettings struct {
	TenantID                uuid.UUID
	RoleAccounts            map[AccountRole]uuid.UUID
	ExpenseCategoryAccounts map[uuid.UUID]uuid.UUID
	Prefixes                map[CounterKind]string
	Currency                string
	PaymentTermDays         int
	Version                 int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NewTenantSettings creates empty settings for a tenant
func NewTenantSettings(tenantID uuid.UUID, currency string) (*TenantSettings, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID cannot be empty")
	}
	if !currencyPattern.MatchString(currency) {
		return nil, NewValidationError("Invalid currency code %q", currency)
	}
	now := time.Now().UTC()
	return &TenantSettings{
		TenantID:                tenantID,
		RoleAccounts:            make(map[AccountRole]uuid.UUID),
		ExpenseCategoryAccounts: make(map[uuid.UUID]uuid.UUID),
		Prefixes:                make(map[CounterKind]string),
		Currency:                currency,
		PaymentTermDays:         DefaultPaymentTermDays,
		Version:                 1,
		CreatedAt:               now,
		UpdatedAt:               now,
	}, nil
}

// MapRole assigns an account to a role after checking its type and state
func (s *TenantSettings) MapRole(role AccountRole, account *Account) error {
	if !role.IsValid() {
		return NewValidationError("Unknown account role %q", role)
	}
	if err := s.checkAccount(account, role.ExpectedType()); err != nil {
		return err
	}
	s.RoleAccounts[role] = account.ID
	return nil
}

// MapExpenseCategory assigns the expense account used for a category
func (s *TenantSettings) MapExpenseCategory(categoryID uuid.UUID, account *Account) error {
	if categoryID == uuid.Nil {
		return NewValidationError("Expense category ID cannot be empty")
	}
	if err := s.checkAccount(account, AccountTypeExpense); err != nil {
		return err
	}
	s.ExpenseCategoryAccounts[categoryID] = account.ID
	return nil
}

func (s *TenantSettings) checkAccount(account *Account, expected AccountType) error {
	if account == nil {
		return NewValidationError("Account is required")
	}
	if account.TenantID != s.TenantID {
		return NewNotFoundError("account", account.ID)
	}
	if !account.IsActive {
		return NewValidationError("Account %s is inactive", account.Code)
	}
	if account.Type != expected {
		return NewValidationError("Account %s is %s, expected %s", account.Code, account.Type, expected)
	}
	return nil
}

// SetPrefix sets the numbering prefix for a counter kind
func (s *TenantSettings) SetPrefix(kind CounterKind, prefix string) error {
	if !kind.IsValid() {
		return NewValidationError("Unknown counter kind %q", kind)
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || len(prefix) > 10 {
		return NewValidationError("Prefix for %s must be 1-10 characters", kind)
	}
	s.Prefixes[kind] = prefix
	return nil
}

// AccountFor resolves a role to its account ID
func (s *TenantSettings) AccountFor(role AccountRole) (uuid.UUID, error) {
	id, ok := s.RoleAccounts[role]
	if !ok || id == uuid.Nil {
		return uuid.Nil, NewValidationError("Tenant has no %s account configured", role).
			WithDetail("role", role.String())
	}
	return id, nil
}

// ExpenseAccountFor resolves an expense category to its expense account,
// falling back to the default expense role
func (s *TenantSettings) ExpenseAccountFor(categoryID uuid.UUID) (uuid.UUID, error) {
	if id, ok := s.ExpenseCategoryAccounts[categoryID]; ok && id != uuid.Nil {
		return id, nil
	}
	id, ok := s.RoleAccounts[RoleExpense]
	if !ok || id == uuid.Nil {
		return uuid.Nil, NewValidationError("No expense account mapped for category %s", categoryID).
			WithDetail("category_id", categoryID.String())
	}
	return id, nil
}

// PrefixFor returns the tenant's prefix for a counter kind
func (s *TenantSettings) PrefixFor(kind CounterKind) (string, bool) {
	p, ok := s.Prefixes[kind]
	return p, ok && p != ""
}

// RoleOf returns the role an account is mapped to, if any
func (s *TenantSettings) RoleOf(accountID uuid.UUID) (AccountRole, bool) {
	for role, id := range s.RoleAccounts {
		if id == accountID {
			return role, true
		}
	}
	for _, id := range s.ExpenseCategoryAccounts {
		if id == accountID {
			return RoleExpense, true
		}
	}
	return "", false
}

// DueDateFor returns the default due date for an invoice dated invoiceDate
func (s *TenantSettings) DueDateFor(invoiceDate time.Time) time.Time {
	days := s.PaymentTermDays
	if days <= 0 {
		days = DefaultPaymentTermDays
	}
	return invoiceDate.AddDate(0, 0, days)
}
