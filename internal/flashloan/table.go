// Package flashloan selects the flashloan venue for a plan and sizes the
// flashloan.
package flashloan

import (
	"fmt"
	"sort"
	"strings"

	"leverage_planner/internal/core"
)

// Provider is a flashloan liquidity venue
type Provider string

const (
	// ProviderDssFlash is the Maker DAI flash-mint module
	ProviderDssFlash Provider = "dss-flash"
	// ProviderBalancer is the Balancer vault multi-asset flashloan
	ProviderBalancer Provider = "balancer"
	// ProviderAaveV3 is the AAVE v3 pool flashloan
	ProviderAaveV3 Provider = "aave-v3"
)

// ParseProvider validates a provider name
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderDssFlash, ProviderBalancer, ProviderAaveV3:
		return p, nil
	}
	return "", fmt.Errorf("unknown flashloan provider %q", s)
}

// AnyProtocol matches every protocol in a table entry
const AnyProtocol core.Protocol = "*"

// EntrySpec maps a network/protocol pair to a venue. When UseDebtToken is
// set the flashloaned token is whatever the position borrows.
type EntrySpec struct {
	Network      core.Network
	Protocol     core.Protocol
	Provider     Provider
	Token        core.Token
	UseDebtToken bool
}

// OverrideSpec marks a protocol/provider combination whose flashloan amount
// is the debt delta as is, never a collateral-grossed-up value. The debt
// delta is the swap input less any debt tokens the user deposits, so it only
// equals the swap's fromTokenAmount when nothing is deposited.
type OverrideSpec struct {
	Protocol core.Protocol
	Provider Provider
	Reason   string
}

// TableSpec is the raw, versioned flashloan table
type TableSpec struct {
	Version   string
	Entries   []EntrySpec
	Overrides []OverrideSpec
}

type entryKey struct {
	network  core.Network
	protocol core.Protocol
}

type overrideKey struct {
	protocol core.Protocol
	provider Provider
}

// Table is an immutable flashloan lookup
type Table struct {
	version   string
	entries   map[entryKey]EntrySpec
	overrides map[overrideKey]OverrideSpec
}

// NewTable validates spec and builds the lookup
func NewTable(spec TableSpec) (*Table, error) {
	if spec.Version == "" {
		return nil, fmt.Errorf("flashloan table: version is required")
	}
	t := &Table{
		version:   spec.Version,
		entries:   make(map[entryKey]EntrySpec, len(spec.Entries)),
		overrides: make(map[overrideKey]OverrideSpec, len(spec.Overrides)),
	}
	for _, e := range spec.Entries {
		if _, err := ParseProvider(string(e.Provider)); err != nil {
			return nil, fmt.Errorf("flashloan table %s: %w", spec.Version, err)
		}
		if !e.UseDebtToken && e.Token.Symbol == "" {
			return nil, fmt.Errorf("flashloan table %s: entry %s/%s has no token", spec.Version, e.Network, e.Protocol)
		}
		key := entryKey{network: e.Network, protocol: e.Protocol}
		if _, dup := t.entries[key]; dup {
			return nil, fmt.Errorf("flashloan table %s: duplicate entry %s/%s", spec.Version, e.Network, e.Protocol)
		}
		t.entries[key] = e
	}
	for _, o := range spec.Overrides {
		if _, err := ParseProvider(string(o.Provider)); err != nil {
			return nil, fmt.Errorf("flashloan table %s: %w", spec.Version, err)
		}
		t.overrides[overrideKey{protocol: o.Protocol, provider: o.Provider}] = o
	}
	return t, nil
}

// Version identifies the loaded table
func (t *Table) Version() string { return t.version }

// Entries returns the entries ordered by network then protocol
func (t *Table) Entries() []EntrySpec {
	out := make([]EntrySpec, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Network != out[j].Network {
			return out[i].Network < out[j].Network
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out
}

// Overrides returns the override entries ordered by protocol
func (t *Table) Overrides() []OverrideSpec {
	out := make([]OverrideSpec, 0, len(t.overrides))
	for _, o := range t.overrides {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Protocol != out[j].Protocol {
			return out[i].Protocol < out[j].Protocol
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

func (t *Table) lookup(network core.Network, protocol core.Protocol) (EntrySpec, bool) {
	if e, ok := t.entries[entryKey{network: network, protocol: protocol}]; ok {
		return e, true
	}
	e, ok := t.entries[entryKey{network: network, protocol: AnyProtocol}]
	return e, ok
}

// UsesSwapAmount reports whether protocol/provider is an override combination
func (t *Table) UsesSwapAmount(protocol core.Protocol, provider Provider) bool {
	if _, ok := t.overrides[overrideKey{protocol: protocol, provider: provider}]; ok {
		return true
	}
	_, ok := t.overrides[overrideKey{protocol: AnyProtocol, provider: provider}]
	return ok
}
