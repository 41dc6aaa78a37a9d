// Package attribute maps raw vehicle attribute keys to the icon and unit of
// measurement shown for the corresponding sensor entity.
//
// The tables are assembled once when the package is initialised and are
// read-only afterwards. Callers select a registry for the host unit system
// with For and query it with Lookup.
package attribute

import (
	"sort"

	"github.com/kilianp07/cdsensor/core/units"
)

// Descriptor holds the presentation details of an attribute. Empty strings
// mean "no icon" and "no unit".
type Descriptor struct {
	Icon string `json:"icon,omitempty"`
	Unit string `json:"unit,omitempty"`
}

// Table maps attribute keys to descriptors.
type Table map[string]Descriptor

// Registry is an immutable attribute table.
type Registry struct {
	system  units.System
	entries Table
}

// Merge returns a new table holding all entries of the given tables. Later
// tables win on key collisions. The inputs are not modified.
func Merge(tables ...Table) Table {
	n := 0
	for _, t := range tables {
		n += len(t)
	}
	out := make(Table, n)
	for _, t := range tables {
		for k, d := range t {
			out[k] = d
		}
	}
	return out
}

func newRegistry(system units.System, tables ...Table) *Registry {
	return &Registry{system: system, entries: Merge(tables...)}
}

var (
	metricRegistry   = newRegistry(units.Metric, metricTable, genericTable)
	imperialRegistry = newRegistry(units.Imperial, imperialTable, genericTable)
)

// For returns the registry matching the unit system. Imperial selects the
// miles/gallons table, anything else the kilometers/liters table.
func For(system units.System) *Registry {
	if system.IsImperial() {
		return imperialRegistry
	}
	return metricRegistry
}

// System returns the unit system the registry was built for.
func (r *Registry) System() units.System { return r.system }

// Lookup returns the descriptor for key or an empty descriptor when the key
// is not mapped.
func (r *Registry) Lookup(key string) Descriptor {
	return r.entries[key]
}

// Has reports whether key is mapped.
func (r *Registry) Has(key string) bool {
	_, ok := r.entries[key]
	return ok
}

// Keys lists all mapped keys in lexical order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of mapped keys.
func (r *Registry) Len() int { return len(r.entries) }
