package ledger

import (
	"github.com/google/uuid"

	"github.com/lexledger/backend/internal/domain/shared"
)

// Event type names for accounts
const (
	EventTypeAccountCreated     = "AccountCreated"
	EventTypeAccountDeactivated = "AccountDeactivated"
)

// AccountCreatedEvent is raised when an account is added to the chart
type AccountCreatedEvent struct {
	shared.BaseDomainEvent
	AccountID   uuid.UUID   `json:"account_id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	AccountType AccountType `json:"account_type"`
}

// EventType returns the event type name
func (e *AccountCreatedEvent) EventType() string {
	return EventTypeAccountCreated
}

// NewAccountCreatedEvent creates a new AccountCreatedEvent
func NewAccountCreatedEvent(a *Account) *AccountCreatedEvent {
	return &AccountCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAccountCreated, "Account", a.ID, a.TenantID),
		AccountID:       a.ID,
		Code:            a.Code,
		Name:            a.Name,
		AccountType:     a.Type,
	}
}

// AccountDeactivatedEvent is raised when an account stops accepting lines
type AccountDeactivatedEvent struct {
	shared.BaseDomainEvent
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
}

// EventType returns the event type name
func (e *AccountDeactivatedEvent) EventType() string {
	return EventTypeAccountDeactivated
}

// NewAccountDeactivatedEvent creates a new AccountDeactivatedEvent
func NewAccountDeactivatedEvent(a *Account) *AccountDeactivatedEvent {
	return &AccountDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAccountDeactivated, "Account", a.ID, a.TenantID),
		AccountID:       a.ID,
		Code:            a.Code,
	}
}
