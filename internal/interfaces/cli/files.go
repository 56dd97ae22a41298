package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// ChartAccount is one account row of a chart file
type ChartAccount struct {
	Code        string `mapstructure:"code"`
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	Parent      string `mapstructure:"parent"`
	Description string `mapstructure:"description"`
	Currency    string `mapstructure:"currency"`
	System      bool   `mapstructure:"system"`
}

// ChartFile is a chart of accounts to seed:
//
//	[[accounts]]
//	code = "1000"
//	name = "Operating Cash"
//	type = "asset"
//	system = true
type ChartFile struct {
	Accounts []ChartAccount `mapstructure:"accounts"`
}

// SettingsFile maps ledger roles and expense categories to account codes:
//
//	currency = "USD"
//	payment_term_days = 30
//	[roles]
//	cash = "1000"
//	accounts_receivable = "1100"
//	[expense_categories]
//	"6f1c...-..." = "5200"
//	[prefixes]
//	invoice = "INV"
type SettingsFile struct {
	Currency          string            `mapstructure:"currency"`
	PaymentTermDays   int               `mapstructure:"payment_term_days"`
	Roles             map[string]string `mapstructure:"roles"`
	ExpenseCategories map[string]string `mapstructure:"expense_categories"`
	Prefixes          map[string]string `mapstructure:"prefixes"`
}

// LoadChartFile reads a chart of accounts in any format viper understands
func LoadChartFile(path string) (*ChartFile, error) {
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var chart ChartFile
	if err := v.Unmarshal(&chart); err != nil {
		return nil, fmt.Errorf("failed to decode chart %s: %w", path, err)
	}
	if len(chart.Accounts) == 0 {
		return nil, fmt.Errorf("chart %s lists no accounts", path)
	}

	seen := make(map[string]bool, len(chart.Accounts))
	for i, a := range chart.Accounts {
		if strings.TrimSpace(a.Code) == "" {
			return nil, fmt.Errorf("chart %s: account %d has no code", path, i+1)
		}
		if seen[a.Code] {
			return nil, fmt.Errorf("chart %s: account code %s appears twice", path, a.Code)
		}
		seen[a.Code] = true
	}
	return &chart, nil
}

// LoadSettingsFile reads tenant ledger settings in any format viper understands
func LoadSettingsFile(path string) (*SettingsFile, error) {
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var settings SettingsFile
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings %s: %w", path, err)
	}
	for category := range settings.ExpenseCategories {
		if _, err := uuid.Parse(category); err != nil {
			return nil, fmt.Errorf("settings %s: expense category %q is not a UUID", path, category)
		}
	}
	return &settings, nil
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return v, nil
}

// orderByParent returns accounts with every parent ahead of its children.
// Parents outside the file are assumed to exist already.
func orderByParent(accounts []ChartAccount) ([]ChartAccount, error) {
	byCode := make(map[string]ChartAccount, len(accounts))
	for _, a := range accounts {
		byCode[a.Code] = a
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(accounts))
	ordered := make([]ChartAccount, 0, len(accounts))

	var visit func(code string) error
	visit = func(code string) error {
		switch state[code] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("account %s is its own ancestor", code)
		}
		state[code] = visiting
		a := byCode[code]
		if _, inFile := byCode[a.Parent]; a.Parent != "" && inFile {
			if err := visit(a.Parent); err != nil {
				return err
			}
		}
		state[code] = done
		ordered = append(ordered, a)
		return nil
	}

	for _, a := range accounts {
		if err := visit(a.Code); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
