package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"

	appledger "github.com/lexledger/backend/internal/application/ledger"
	"github.com/lexledger/backend/internal/infrastructure/config"
	"github.com/lexledger/backend/internal/infrastructure/persistence"
	"github.com/lexledger/backend/internal/infrastructure/persistence/models"
)

const chartTOML = `
[[accounts]]
code = "1000"
name = "Assets"
type = "asset"

[[accounts]]
code = "1010"
name = "Operating Cash"
type = "asset"
parent = "1000"
system = true

[[accounts]]
code = "1100"
name = "Accounts Receivable"
type = "asset"
parent = "1000"

[[accounts]]
code = "4000"
name = "Legal Fees"
type = "revenue"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// newTestRoot returns ledgerctl over one sqlite database shared by every
// command invocation in the test
func newTestRoot(t *testing.T) func(args ...string) (string, error) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := persistence.Open(sqlite.Open(dsn), zap.NewNop(), "silent", 0)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.LedgerModels()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	settings := persistence.NewGormSettingsRepository(db)
	services := appledger.NewServices(appledger.Dependencies{
		Scope:    persistence.NewGormTransactionScope(db),
		Accounts: persistence.NewGormAccountRepository(db),
		Entries:  persistence.NewGormJournalEntryRepository(db),
		Invoices: persistence.NewGormInvoiceRepository(db),
		Payments: persistence.NewGormPaymentRepository(db),
		Expenses: persistence.NewGormExpenseRepository(db),
		Settings: settings,
		Counters: persistence.NewGormCounterStore(db),
		Defaults: appledger.DefaultDefaults(),
		Logger:   zap.NewNop(),
	})
	factory := func(context.Context, *config.Config) (*Runtime, error) {
		return &Runtime{Logger: zap.NewNop(), Services: services, Tenants: settings}, nil
	}
	load := func(string) (*config.Config, error) { return &config.Config{}, nil }

	return func(args ...string) (string, error) {
		cmd := NewRootCommand(WithRuntimeFactory(factory), WithConfigLoader(load))
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}
}

func TestLoadChartFile(t *testing.T) {
	chart, err := LoadChartFile(writeFile(t, "chart.toml", chartTOML))
	require.NoError(t, err)
	require.Len(t, chart.Accounts, 4)
	assert.Equal(t, "1010", chart.Accounts[1].Code)
	assert.Equal(t, "1000", chart.Accounts[1].Parent)
	assert.True(t, chart.Accounts[1].System)
}

func TestLoadChartFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "title = \"nothing\"\n", "lists no accounts"},
		{"missing code", "[[accounts]]\nname = \"Cash\"\ntype = \"asset\"\n", "has no code"},
		{"duplicate", "[[accounts]]\ncode = \"1000\"\n[[accounts]]\ncode = \"1000\"\n", "appears twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadChartFile(writeFile(t, "chart.toml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSettingsFile(t *testing.T) {
	category := uuid.New()
	path := writeFile(t, "settings.yaml", fmt.Sprintf(`
currency: EUR
payment_term_days: 14
roles:
  cash: "1010"
expense_categories:
  %s: "5000"
prefixes:
  invoice: FAC
`, category))

	settings, err := LoadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", settings.Currency)
	assert.Equal(t, 14, settings.PaymentTermDays)
	assert.Equal(t, "1010", settings.Roles["cash"])
	assert.Equal(t, "5000", settings.ExpenseCategories[category.String()])
	assert.Equal(t, "FAC", settings.Prefixes["invoice"])

	_, err = LoadSettingsFile(writeFile(t, "bad.yaml", "expense_categories:\n  travel: \"5000\"\n"))
	assert.ErrorContains(t, err, "not a UUID")
}

func TestOrderByParent(t *testing.T) {
	ordered, err := orderByParent([]ChartAccount{
		{Code: "1011", Parent: "1010"},
		{Code: "1010", Parent: "1000"},
		{Code: "2000", Parent: "9999"},
		{Code: "1000"},
	})
	require.NoError(t, err)

	position := make(map[string]int)
	for i, a := range ordered {
		position[a.Code] = i
	}
	require.Len(t, ordered, 4)
	assert.Less(t, position["1000"], position["1010"])
	assert.Less(t, position["1010"], position["1011"])

	_, err = orderByParent([]ChartAccount{
		{Code: "A", Parent: "B"},
		{Code: "B", Parent: "A"},
	})
	assert.ErrorContains(t, err, "its own ancestor")
}

func TestSettingsInput_UnknownCode(t *testing.T) {
	accounts := []*appledger.AccountResponse{{ID: uuid.New(), Code: "1010"}}
	_, err := settingsInput(uuid.New(), &SettingsFile{Roles: map[string]string{"revenue": "4000"}}, accounts)
	assert.ErrorContains(t, err, "account code 4000 does not exist")

	input, err := settingsInput(uuid.New(), &SettingsFile{Roles: map[string]string{"cash": "1010"}}, accounts)
	require.NoError(t, err)
	assert.Equal(t, accounts[0].ID, input.RoleAccounts["cash"])
}

func TestLedgerctl_SeedConfigureReport(t *testing.T) {
	run := newTestRoot(t)
	tenant := uuid.NewString()
	chart := writeFile(t, "chart.toml", chartTOML)

	out, err := run("seed-accounts", "--tenant", tenant, "--file", chart)
	require.NoError(t, err)
	assert.Contains(t, out, "created 4 accounts, 0 already present")

	out, err = run("seed-accounts", "--tenant", tenant, "--file", chart)
	require.NoError(t, err)
	assert.Contains(t, out, "created 0 accounts, 4 already present")

	settings := writeFile(t, "settings.toml", `
currency = "USD"
[roles]
cash = "1010"
accounts_receivable = "1100"
revenue = "4000"
`)
	out, err = run("configure", "--tenant", tenant, "--file", settings)
	require.NoError(t, err)
	assert.Contains(t, out, "settings saved")
	assert.Contains(t, out, "accounts_receivable")

	out, err = run("trial-balance", "--tenant", tenant)
	require.NoError(t, err)
	assert.Contains(t, out, "Operating Cash")
	assert.Contains(t, out, "TOTAL")
	assert.NotContains(t, out, "WARNING")

	out, err = run("verify", "--tenant", tenant)
	require.NoError(t, err)
	assert.Contains(t, out, "4 accounts checked")
}

func TestLedgerctl_AuditOnce(t *testing.T) {
	run := newTestRoot(t)

	out, err := run("audit", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "no tenants to audit")

	tenant := uuid.NewString()
	_, err = run("seed-accounts", "--tenant", tenant, "--file", writeFile(t, "chart.toml", chartTOML))
	require.NoError(t, err)
	_, err = run("configure", "--tenant", tenant, "--file", writeFile(t, "settings.toml", "[roles]\ncash = \"1010\"\n"))
	require.NoError(t, err)

	out, err = run("audit", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, tenant+"  ok     4 accounts")

	other := uuid.NewString()
	out, err = run("audit", "--once", "--tenant", other)
	require.NoError(t, err)
	assert.Contains(t, out, other+"  ok     0 accounts")

	_, err = run("audit", "--once", "--tenant", "acme")
	assert.ErrorContains(t, err, "expected a UUID")
}

func TestLedgerctl_TenantFlag(t *testing.T) {
	run := newTestRoot(t)

	_, err := run("trial-balance")
	assert.ErrorContains(t, err, "tenant")

	_, err = run("trial-balance", "--tenant", "acme")
	assert.ErrorContains(t, err, "expected a UUID")
}

func TestMigrateCommand_ListAndCreate(t *testing.T) {
	execute := func(args ...string) (string, error) {
		cmd := NewMigrateCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := execute("list")
	require.NoError(t, err)
	assert.Contains(t, out, "000001_ledger")

	dir := t.TempDir()
	out, err = execute("create", "add invoice terms", "--dir", dir, "-d", "Net terms per client")
	require.NoError(t, err)
	assert.Contains(t, out, "000001_add_invoice_terms.up.sql")
	assert.FileExists(t, filepath.Join(dir, "000001_add_invoice_terms.down.sql"))

	out, err = execute("list", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "000001_add_invoice_terms")

	_, err = execute("down")
	assert.ErrorContains(t, err, "--confirm")
}
