package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexledger/backend/migrations"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add invoice terms", "add_invoice_terms"},
		{"Add-Invoice-Terms", "add_invoice_terms"},
		{"ADD__INVOICE__TERMS", "add_invoice_terms"},
		{"  padded  ", "padded"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"weird!@#chars 2", "weirdchars_2"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, slugify(tt.input))
		})
	}
}

func TestCreateMigration_Sequential(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	first, err := CreateMigration(dir, "ledger core", "Accounts and journal", now)
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, "000001_ledger_core", first.BaseName())
	assert.Equal(t, filepath.Join(dir, "000001_ledger_core.up.sql"), first.UpPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- ledger_core")
	assert.Contains(t, string(up), "2026-03-01T09:30:00Z")
	assert.Contains(t, string(up), "-- Accounts and journal")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback of 1_ledger_core")

	second, err := CreateMigration(dir, "Invoice Terms", "", now)
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)

	listed, err := ListMigrations(os.DirFS(dir))
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "ledger_core", listed[0].Name)
	assert.Equal(t, "invoice_terms", listed[1].Name)
	assert.Equal(t, "000002_invoice_terms.down.sql", listed[1].DownPath)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "***", "", time.Now())
	assert.Error(t, err)
}

func TestListMigrations_SkipsUnrelatedFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"000003_c.up.sql":   {Data: []byte("SELECT 3;")},
		"000001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"000001_a.down.sql": {Data: []byte("SELECT 1;")},
		"README.md":         {Data: []byte("notes")},
		"embed.go":          {Data: []byte("package migrations")},
		"drafts/x.up.sql":   {Data: []byte("SELECT 0;")},
	}

	listed, err := ListMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, uint(1), listed[0].Version)
	assert.Equal(t, "000001_a.down.sql", listed[0].DownPath)
	assert.Equal(t, uint(3), listed[1].Version)
	assert.Empty(t, listed[1].DownPath)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	listed, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "absent")))
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestEmbeddedMigrations(t *testing.T) {
	listed, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, listed)
	assert.Equal(t, uint(1), listed[0].Version)
	assert.Equal(t, "ledger", listed[0].Name)
	for _, mf := range listed {
		assert.NotEmpty(t, mf.UpPath, "version %d has no up file", mf.Version)
		assert.NotEmpty(t, mf.DownPath, "version %d has no down file", mf.Version)
	}

	up, err := migrations.FS.ReadFile("000001_ledger.up.sql")
	require.NoError(t, err)
	for _, table := range []string{
		"ledger_accounts", "ledger_settings", "ledger_counters",
		"ledger_journal_entries", "ledger_journal_entry_details",
		"ledger_invoices", "ledger_invoice_items",
		"ledger_payments", "ledger_payment_applications", "ledger_expenses",
	} {
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, string(up), "idx_ledger_applications_payment_invoice")
}

func TestPendingAfter(t *testing.T) {
	src, err := iofs.New(fstest.MapFS{
		"000001_a.up.sql": {Data: []byte("SELECT 1;")},
		"000002_b.up.sql": {Data: []byte("SELECT 2;")},
		"000005_c.up.sql": {Data: []byte("SELECT 5;")},
	}, ".")
	require.NoError(t, err)
	defer src.Close()

	tests := []struct {
		applied uint
		pending int
	}{
		{0, 3},
		{1, 2},
		{2, 1},
		{5, 0},
	}
	for _, tt := range tests {
		latest, pending, err := pendingAfter(src, tt.applied)
		require.NoError(t, err)
		assert.Equal(t, uint(5), latest)
		assert.Equal(t, tt.pending, pending, "applied=%d", tt.applied)
	}
}

func TestStatus_UpToDate(t *testing.T) {
	assert.True(t, Status{Version: 1, Latest: 1}.UpToDate())
	assert.False(t, Status{Version: 1, Latest: 1, Dirty: true}.UpToDate())
	assert.False(t, Status{Version: 0, Latest: 1, Pending: 1}.UpToDate())
}
