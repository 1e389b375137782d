package inspect

import (
	"fmt"

	"mevscope/internal/model"
)

// ComposeFunc merges two lower-level bundles into one higher-level bundle.
// The boolean is false when the payload pair has unexpected concrete types.
type ComposeFunc func(head, dep model.Bundle) (model.Bundle, bool)

// DependencyEntry declares how one MEV type relates to lower-level types.
// With a compose function it is a binary merge (Deps must have length 2);
// without one, bundles of Head subsume dependency bundles sharing
// transactions.
type DependencyEntry struct {
	Head    model.MevType
	Compose ComposeFunc
	Deps    []model.MevType
}

// DependencyTable is an ordered rule list, evaluated strictly in declaration
// order: lower-level MEV is resolved before higher-level composition.
// Process-wide, immutable, built once at startup.
type DependencyTable []DependencyEntry

// NewDependencyTable validates the entries. A compose entry with a
// dependency arity other than 2 is a configuration defect; callers must
// abort startup on error.
func NewDependencyTable(entries ...DependencyEntry) (DependencyTable, error) {
	for i, entry := range entries {
		if len(entry.Deps) == 0 {
			return nil, fmt.Errorf("dependency entry %d (%s): no dependency types", i, entry.Head)
		}
		if entry.Compose != nil && len(entry.Deps) != 2 {
			return nil, fmt.Errorf("dependency entry %d (%s): compose requires exactly 2 dependency types, got %d", i, entry.Head, len(entry.Deps))
		}
	}
	return DependencyTable(entries), nil
}

// DefaultDependencyTable builds the standard resolution order: sandwiches
// subsume backruns and cex-dex arbs sharing their transactions, then
// sandwich/jit pairs compose into jit-sandwiches.
func DefaultDependencyTable() DependencyTable {
	table, err := NewDependencyTable(
		DependencyEntry{
			Head: model.MevSandwich,
			Deps: []model.MevType{model.MevBackrun, model.MevCexDex},
		},
		DependencyEntry{
			Head:    model.MevJitSandwich,
			Compose: model.ComposeSandwichJit,
			Deps:    []model.MevType{model.MevSandwich, model.MevJit},
		},
	)
	if err != nil {
		panic(fmt.Sprintf("default dependency table: %v", err))
	}
	return table
}
