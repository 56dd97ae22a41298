package ledger

import (
	"bytes"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// MaxJournalTextLength bounds entry descriptions, line descriptions and void reasons, in characters
const MaxJournalTextLength = 500

// ClipJournalText shortens composed journal text to MaxJournalTextLength characters
func ClipJournalText(s string) string {
	if utf8.RuneCountInString(s) <= MaxJournalTextLength {
		return s
	}
	return string([]rune(s)[:MaxJournalTextLength])
}

// JournalEntryStatus is the lifecycle state of a journal entry
type JournalEntryStatus string

const (
	JournalEntryStatusDraft  JournalEntryStatus = "draft"
	JournalEntryStatusPosted JournalEntryStatus = "posted"
	JournalEntryStatusVoided JournalEntryStatus = "voided"
)

// IsValid checks if the status is a valid JournalEntryStatus
func (s JournalEntryStatus) IsValid() bool {
	switch s {
	case JournalEntryStatusDraft, JournalEntryStatusPosted, JournalEntryStatusVoided:
		return true
	}
	return false
}

// String returns the string representation of JournalEntryStatus
func (s JournalEntryStatus) String() string {
	return string(s)
}

// IsTerminal returns true for voided entries
func (s JournalEntryStatus) IsTerminal() bool {
	return s == JournalEntryStatusVoided
}

// CanEdit returns true if lines may still change
func (s JournalEntryStatus) CanEdit() bool {
	return s == JournalEntryStatusDraft
}

// CanPost returns true if the entry can be posted
func (s JournalEntryStatus) CanPost() bool {
	return s == JournalEntryStatusDraft
}

// CanVoid returns true if the entry can be voided
func (s JournalEntryStatus) CanVoid() bool {
	return s == JournalEntryStatusPosted
}

// Dimensions are reporting tags on a journal line. They never affect balances.
type Dimensions struct {
	ClientID   *uuid.UUID
	CaseID     *uuid.UUID
	ContractID *uuid.UUID
}

// JournalLine is the input for one debit or credit line
type JournalLine struct {
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	Dimensions  Dimensions
}

// DebitLine builds a line debiting the account
func DebitLine(accountID uuid.UUID, amount decimal.Decimal, description string) JournalLine {
	return JournalLine{AccountID: accountID, Debit: amount, Credit: decimal.Zero, Description: description}
}

// CreditLine builds a line crediting the account
func CreditLine(accountID uuid.UUID, amount decimal.Decimal, description string) JournalLine {
	return JournalLine{AccountID: accountID, Debit: decimal.Zero, Credit: amount, Description: description}
}

// validate enforces that exactly one side carries a strictly positive amount
func (l JournalLine) validate(lineNo int) error {
	if l.AccountID == uuid.Nil {
		return NewValidationError("Line %d: account ID cannot be empty", lineNo)
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return NewValidationError("Line %d: amounts cannot be negative", lineNo)
	}
	hasDebit := l.Debit.IsPositive()
	hasCredit := l.Credit.IsPositive()
	if hasDebit == hasCredit {
		return NewValidationError("Line %d: exactly one of debit or credit must be greater than zero", lineNo)
	}
	if !fitsScale(l.Debit) || !fitsScale(l.Credit) {
		return NewValidationError("Line %d: amounts support at most %d decimal places", lineNo, AmountPlaces)
	}
	if utf8.RuneCountInString(l.Description) > MaxJournalTextLength {
		return NewValidationError("Line %d: description cannot exceed %d characters", lineNo, MaxJournalTextLength)
	}
	return nil
}

// JournalEntryDetail is one stored line of a journal entry
type JournalEntryDetail struct {
	ID             uuid.UUID
	JournalEntryID uuid.UUID
	LineNo         int
	AccountID      uuid.UUID
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Description    string
	Dimensions     Dimensions
	// AppliedDelta is the signed balance change made to the account at posting.
	// Voiding subtracts exactly this value.
	AppliedDelta decimal.Decimal
}

// JournalEntry is an atomic, tenant-scoped financial transaction
type JournalEntry struct {
	shared.TenantAggregateRoot
	EntryNumber string
	EntryDate   time.Time
	Description string
	Source      SourceDocument
	Status      JournalEntryStatus
	Lines       []JournalEntryDetail
	PostedAt    *time.Time
	PostedBy    *uuid.UUID
	VoidedAt    *time.Time
	VoidedBy    *uuid.UUID
	VoidReason  string
}

// NewJournalEntry creates a draft entry. Only structural checks run here;
// the balance invariant is enforced when the entry is posted.
func NewJournalEntry(
	tenantID uuid.UUID,
	entryNumber string,
	entryDate time.Time,
	description string,
	source SourceDocument,
	lines []JournalLine,
) (*JournalEntry, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID cannot be empty")
	}
	if strings.TrimSpace(entryNumber) == "" {
		return nil, NewValidationError("Entry number cannot be empty")
	}
	if entryDate.IsZero() {
		return nil, NewValidationError("Entry date is required")
	}

	entry := &JournalEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		EntryNumber:         entryNumber,
		EntryDate:           entryDate,
		Source:              source,
		Status:              JournalEntryStatusDraft,
	}
	if err := entry.setContent(description, lines); err != nil {
		return nil, err
	}
	return entry, nil
}

// ReplaceLines rewrites the description and lines of a draft entry
func (e *JournalEntry) ReplaceLines(description string, lines []JournalLine) error {
	if !e.Status.CanEdit() {
		return NewInvalidStateError("journal entry", e.ID, e.Status.String(), "edit")
	}
	if err := e.setContent(description, lines); err != nil {
		return err
	}
	e.Touch(time.Now().UTC())
	e.IncrementVersion()
	return nil
}

func (e *JournalEntry) setContent(description string, lines []JournalLine) error {
	if utf8.RuneCountInString(description) > MaxJournalTextLength {
		return NewValidationError("Description cannot exceed %d characters", MaxJournalTextLength)
	}
	if len(lines) == 0 {
		return NewValidationError("Journal entry must have at least one line")
	}
	details := make([]JournalEntryDetail, 0, len(lines))
	for i, line := range lines {
		if err := line.validate(i + 1); err != nil {
			return err
		}
		details = append(details, JournalEntryDetail{
			ID:             uuid.New(),
			JournalEntryID: e.ID,
			LineNo:         i + 1,
			AccountID:      line.AccountID,
			Debit:          line.Debit,
			Credit:         line.Credit,
			Description:    line.Description,
			Dimensions:     line.Dimensions,
			AppliedDelta:   decimal.Zero,
		})
	}
	e.Description = strings.TrimSpace(description)
	e.Lines = details
	return nil
}

// Totals returns the sum of debits and the sum of credits
func (e *JournalEntry) Totals() (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, line := range e.Lines {
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	return debits, credits
}

// IsBalanced compares totals exactly in fixed-point arithmetic
func (e *JournalEntry) IsBalanced() bool {
	debits, credits := e.Totals()
	return debits.Equal(credits)
}

// AccountIDs returns the distinct referenced accounts in ascending byte order.
// Lock acquisition follows this order so concurrent posters never deadlock.
func (e *JournalEntry) AccountIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(e.Lines))
	ids := make([]uuid.UUID, 0, len(e.Lines))
	for _, line := range e.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	SortIDs(ids)
	return ids
}

// SortIDs sorts ids ascending by their byte representation
func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}

// CheckLineAccounts verifies that every line references an active account of the tenant
func CheckLineAccounts(tenantID uuid.UUID, lines []JournalLine, accounts map[uuid.UUID]*Account) error {
	for i, line := range lines {
		account, ok := accounts[line.AccountID]
		if !ok || account.TenantID != tenantID {
			return NewNotFoundError("account", line.AccountID).WithDetail("line", i+1)
		}
		if !account.IsActive {
			return NewValidationError("Line %d: account %s (%s) is inactive", i+1, account.Code, account.ID).
				WithDetail("account_id", account.ID.String())
		}
	}
	return nil
}

// Post applies every line to its account balance and marks the entry posted.
// accounts must hold every referenced account, already locked by the caller.
// Nothing is mutated unless every check passes.
func (e *JournalEntry) Post(accounts map[uuid.UUID]*Account, actor uuid.UUID, at time.Time) error {
	if !e.Status.CanPost() {
		return NewInvalidStateError("journal entry", e.ID, e.Status.String(), "post")
	}
	if len(e.Lines) == 0 {
		return NewValidationError("Journal entry %s has no lines", e.ID)
	}
	debits, credits := e.Totals()
	if !debits.Equal(credits) {
		return NewUnbalancedEntryError(e.ID, debits, credits)
	}

	deltas := make([]decimal.Decimal, len(e.Lines))
	for i, line := range e.Lines {
		account, ok := accounts[line.AccountID]
		if !ok || account.TenantID != e.TenantID {
			return NewNotFoundError("account", line.AccountID).WithDetail("entry_id", e.ID.String())
		}
		deltas[i] = account.Type.SignedDelta(line.Debit, line.Credit)
	}

	for i := range e.Lines {
		e.Lines[i].AppliedDelta = deltas[i]
		accounts[e.Lines[i].AccountID].applyDelta(deltas[i], at)
	}

	e.Status = JournalEntryStatusPosted
	e.PostedAt = &at
	if actor != uuid.Nil {
		e.PostedBy = &actor
	}
	e.Touch(at)
	e.IncrementVersion()

	e.AddDomainEvent(NewJournalEntryPostedEvent(e, debits))

	return nil
}

// Void reverses exactly the deltas recorded at posting time and marks the entry voided.
// The entry and its lines are kept for audit.
func (e *JournalEntry) Void(accounts map[uuid.UUID]*Account, reason string, actor uuid.UUID, at time.Time) error {
	if !e.Status.CanVoid() {
		return NewInvalidStateError("journal entry", e.ID, e.Status.String(), "void")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return NewValidationError("Void reason is required")
	}
	if utf8.RuneCountInString(reason) > MaxJournalTextLength {
		return NewValidationError("Void reason cannot exceed %d characters", MaxJournalTextLength)
	}
	for _, line := range e.Lines {
		account, ok := accounts[line.AccountID]
		if !ok || account.TenantID != e.TenantID {
			return NewNotFoundError("account", line.AccountID).WithDetail("entry_id", e.ID.String())
		}
	}

	for _, line := range e.Lines {
		accounts[line.AccountID].applyDelta(line.AppliedDelta.Neg(), at)
	}

	e.Status = JournalEntryStatusVoided
	e.VoidedAt = &at
	if actor != uuid.Nil {
		e.VoidedBy = &actor
	}
	e.VoidReason = reason
	e.Touch(at)
	e.IncrementVersion()

	debits, _ := e.Totals()
	e.AddDomainEvent(NewJournalEntryVoidedEvent(e, debits))

	return nil
}

// IsDraft returns true if entry is in draft status
func (e *JournalEntry) IsDraft() bool {
	return e.Status == JournalEntryStatusDraft
}

// IsPosted returns true if entry is posted
func (e *JournalEntry) IsPosted() bool {
	return e.Status == JournalEntryStatusPosted
}

// IsVoided returns true if entry is voided
func (e *JournalEntry) IsVoided() bool {
	return e.Status == JournalEntryStatusVoided
}
