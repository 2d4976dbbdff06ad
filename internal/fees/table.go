// Package fees resolves the protocol swap fee rate and the swap leg it is
// collected from.
package fees

import (
	"fmt"
	"strings"

	"leverage_planner/pkg/tokenmath"

	"github.com/shopspring/decimal"
)

// TableSpec is the raw form of a fee table, as loaded from configuration
type TableSpec struct {
	Version           string
	DefaultFeeBps     int64
	ReducedFeeBps     int64
	CorrelatedPairs   [][2]string
	AcceptedFeeTokens []string
}

// Table is an immutable, versioned fee lookup
type Table struct {
	version     string
	defaultRate decimal.Decimal
	reducedRate decimal.Decimal
	correlated  map[string]struct{}
	acceptedIdx map[string]int
	accepted    []string
}

// NewTable validates spec and builds the lookup structures
func NewTable(spec TableSpec) (*Table, error) {
	if spec.Version == "" {
		return nil, fmt.Errorf("fee table: version is required")
	}
	if spec.DefaultFeeBps < 0 || spec.DefaultFeeBps > 10_000 {
		return nil, fmt.Errorf("fee table %s: default fee %d bps out of range", spec.Version, spec.DefaultFeeBps)
	}
	if spec.ReducedFeeBps < 0 || spec.ReducedFeeBps > spec.DefaultFeeBps {
		return nil, fmt.Errorf("fee table %s: reduced fee %d bps must be within [0, %d]", spec.Version, spec.ReducedFeeBps, spec.DefaultFeeBps)
	}

	t := &Table{
		version:     spec.Version,
		defaultRate: tokenmath.Bps(spec.DefaultFeeBps),
		reducedRate: tokenmath.Bps(spec.ReducedFeeBps),
		correlated:  make(map[string]struct{}, len(spec.CorrelatedPairs)*2),
		acceptedIdx: make(map[string]int, len(spec.AcceptedFeeTokens)),
	}
	for _, pair := range spec.CorrelatedPairs {
		a, b := normalize(pair[0]), normalize(pair[1])
		if a == "" || b == "" {
			return nil, fmt.Errorf("fee table %s: empty symbol in correlated pair %v", spec.Version, pair)
		}
		t.correlated[pairKey(a, b)] = struct{}{}
		t.correlated[pairKey(b, a)] = struct{}{}
	}
	for i, sym := range spec.AcceptedFeeTokens {
		s := normalize(sym)
		if _, dup := t.acceptedIdx[s]; dup {
			return nil, fmt.Errorf("fee table %s: duplicate accepted fee token %s", spec.Version, sym)
		}
		t.acceptedIdx[s] = i
		t.accepted = append(t.accepted, s)
	}
	return t, nil
}

// Version identifies the loaded table
func (t *Table) Version() string { return t.version }

// DefaultRate is the fee applied to ordinary swaps
func (t *Table) DefaultRate() decimal.Decimal { return t.defaultRate }

// ReducedRate is the fee applied to correlated pairs
func (t *Table) ReducedRate() decimal.Decimal { return t.reducedRate }

// AcceptedFeeTokens returns a copy of the priority list
func (t *Table) AcceptedFeeTokens() []string {
	out := make([]string, len(t.accepted))
	copy(out, t.accepted)
	return out
}

func (t *Table) isCorrelated(a, b string) bool {
	_, ok := t.correlated[pairKey(normalize(a), normalize(b))]
	return ok
}

func (t *Table) acceptedIndex(symbol string) (int, bool) {
	i, ok := t.acceptedIdx[normalize(symbol)]
	return i, ok
}

// normalize folds case and treats WETH as ETH
func normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "WETH" {
		return "ETH"
	}
	return s
}

func pairKey(a, b string) string {
	return a + "/" + b
}
