// Package models contains GORM-specific persistence models that map to the ledger tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags
// 2. Persistence models hold the table mappings and column types
// 3. ToDomain and FromDomain convert between the two
// 4. Repositories read and write models only
//
// Structure:
// - base.go: shared columns (id, timestamps, version, tenant)
// - ledger.go: accounts, journal entries, tenant settings and counters
// - receivables.go: invoices, payments with their applications, and expenses
package models
