package config

import (
	_ "embed"
	"fmt"

	"leverage_planner/internal/core"
	"leverage_planner/internal/fees"
	"leverage_planner/internal/flashloan"

	"gopkg.in/yaml.v3"
)

//go:embed default_tables.yaml
var defaultTablesYAML []byte

// FeeTableConfig is the YAML form of fees.TableSpec
type FeeTableConfig struct {
	Version           string      `yaml:"version"`
	DefaultFeeBps     int64       `yaml:"default_fee_bps"`
	ReducedFeeBps     int64       `yaml:"reduced_fee_bps"`
	CorrelatedPairs   [][2]string `yaml:"correlated_pairs"`
	AcceptedFeeTokens []string    `yaml:"accepted_fee_tokens"`
}

// FlashloanTableConfig is the YAML form of flashloan.TableSpec
type FlashloanTableConfig struct {
	Version   string                 `yaml:"version"`
	Entries   []FlashloanEntryConfig `yaml:"entries"`
	Overrides []FlashloanOverride    `yaml:"overrides"`
}

// FlashloanEntryConfig maps a network/protocol to a venue
type FlashloanEntryConfig struct {
	Network      string     `yaml:"network"`
	Protocol     string     `yaml:"protocol"`
	Provider     string     `yaml:"provider"`
	Token        core.Token `yaml:"token"`
	UseDebtToken bool       `yaml:"use_debt_token"`
}

// FlashloanOverride documents one swap-amount override
type FlashloanOverride struct {
	Protocol string `yaml:"protocol"`
	Provider string `yaml:"provider"`
	Reason   string `yaml:"reason"`
}

type defaultTables struct {
	Fees      FeeTableConfig       `yaml:"fees"`
	Flashloan FlashloanTableConfig `yaml:"flashloan"`
}

// DefaultTables returns the embedded fee and flashloan tables
func DefaultTables() (FeeTableConfig, FlashloanTableConfig, error) {
	var t defaultTables
	if err := yaml.Unmarshal(defaultTablesYAML, &t); err != nil {
		return FeeTableConfig{}, FlashloanTableConfig{}, fmt.Errorf("failed to parse embedded tables: %w", err)
	}
	return t.Fees, t.Flashloan, nil
}

// Tables builds the immutable lookup tables, preferring the configured
// ones over the embedded defaults. Each table is replaced wholesale.
func (c *Config) Tables() (*fees.Table, *flashloan.Table, error) {
	feeCfg, flCfg, err := DefaultTables()
	if err != nil {
		return nil, nil, err
	}
	if c.Fees != nil {
		feeCfg = *c.Fees
	}
	if c.Flashloan != nil {
		flCfg = *c.Flashloan
	}

	feeTable, err := fees.NewTable(feeCfg.Spec())
	if err != nil {
		return nil, nil, err
	}
	flSpec, err := flCfg.Spec()
	if err != nil {
		return nil, nil, err
	}
	flTable, err := flashloan.NewTable(flSpec)
	if err != nil {
		return nil, nil, err
	}
	return feeTable, flTable, nil
}

// Spec converts to the fees package form
func (f FeeTableConfig) Spec() fees.TableSpec {
	return fees.TableSpec{
		Version:           f.Version,
		DefaultFeeBps:     f.DefaultFeeBps,
		ReducedFeeBps:     f.ReducedFeeBps,
		CorrelatedPairs:   f.CorrelatedPairs,
		AcceptedFeeTokens: f.AcceptedFeeTokens,
	}
}

// Spec converts to the flashloan package form
func (f FlashloanTableConfig) Spec() (flashloan.TableSpec, error) {
	spec := flashloan.TableSpec{Version: f.Version}
	for i, e := range f.Entries {
		network, err := core.ParseNetwork(e.Network)
		if err != nil {
			return flashloan.TableSpec{}, fmt.Errorf("flashloan.entries[%d]: %w", i, err)
		}
		protocol, err := parseTableProtocol(e.Protocol)
		if err != nil {
			return flashloan.TableSpec{}, fmt.Errorf("flashloan.entries[%d]: %w", i, err)
		}
		provider, err := flashloan.ParseProvider(e.Provider)
		if err != nil {
			return flashloan.TableSpec{}, fmt.Errorf("flashloan.entries[%d]: %w", i, err)
		}
		spec.Entries = append(spec.Entries, flashloan.EntrySpec{
			Network:      network,
			Protocol:     protocol,
			Provider:     provider,
			Token:        e.Token,
			UseDebtToken: e.UseDebtToken,
		})
	}
	for i, o := range f.Overrides {
		protocol, err := parseTableProtocol(o.Protocol)
		if err != nil {
			return flashloan.TableSpec{}, fmt.Errorf("flashloan.overrides[%d]: %w", i, err)
		}
		provider, err := flashloan.ParseProvider(o.Provider)
		if err != nil {
			return flashloan.TableSpec{}, fmt.Errorf("flashloan.overrides[%d]: %w", i, err)
		}
		spec.Overrides = append(spec.Overrides, flashloan.OverrideSpec{
			Protocol: protocol,
			Provider: provider,
			Reason:   o.Reason,
		})
	}
	return spec, nil
}

func parseTableProtocol(s string) (core.Protocol, error) {
	if s == string(flashloan.AnyProtocol) {
		return flashloan.AnyProtocol, nil
	}
	return core.ParseProtocol(s)
}
