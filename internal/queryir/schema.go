package queryir

import "slices"

// Column kinds.
const (
	KindText    = "text"
	KindInteger = "integer"
	KindBool    = "bool"
)

// Column is one queryable column.
type Column struct {
	Name string
	Kind string
}

// Table describes a queryable table. OrderBy is the table's key; results
// are always ordered by it.
type Table struct {
	Name    string
	Columns []Column
	OrderBy []string
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	i := slices.IndexFunc(t.Columns, func(c Column) bool { return c.Name == name })
	if i < 0 {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in schema order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema is the set of tables a query may reference, keyed by name.
type Schema map[string]Table

// RunSchema mirrors the store's tables. Timing columns are left out; they
// differ between otherwise identical runs and are never filtered on.
var RunSchema = Schema{
	"runs": {
		Name: "runs",
		Columns: []Column{
			{"id", KindText},
			{"strategy", KindText},
			{"stop_reason", KindText},
			{"stop_message", KindText},
			{"iterations", KindInteger},
			{"nodes", KindInteger},
			{"classes", KindInteger},
			{"total_time_ns", KindInteger},
			{"ruleset_hash", KindText},
			{"engine_version", KindText},
			{"ir_version", KindText},
		},
		OrderBy: []string{"id"},
	},
	"iterations": {
		Name: "iterations",
		Columns: []Column{
			{"run_id", KindText},
			{"idx", KindInteger},
			{"nodes", KindInteger},
			{"classes", KindInteger},
			{"merges", KindInteger},
		},
		OrderBy: []string{"run_id", "idx"},
	},
	"rule_applications": {
		Name: "rule_applications",
		Columns: []Column{
			{"run_id", KindText},
			{"iteration", KindInteger},
			{"rule", KindText},
			{"admitted", KindInteger},
			{"applied", KindInteger},
		},
		OrderBy: []string{"run_id", "iteration", "rule"},
	},
	"rule_stats": {
		Name: "rule_stats",
		Columns: []Column{
			{"run_id", KindText},
			{"rule", KindText},
			{"times_applied", KindInteger},
			{"times_banned", KindInteger},
			{"match_limit", KindInteger},
			{"ban_length", KindInteger},
			{"banned_until", KindInteger},
			{"unbannable", KindBool},
		},
		OrderBy: []string{"run_id", "rule"},
	},
}
