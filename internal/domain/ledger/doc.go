// Package ledger contains the double-entry accounting core: the chart of
// accounts, journal entries and the business documents (invoices, payments,
// expenses) whose financial effect is recognized through journal entries.
//
// Account balances change only through JournalEntry.Post and JournalEntry.Void.
package ledger
