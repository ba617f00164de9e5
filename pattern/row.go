package pattern

import (
	"regexp"
	"strings"
)

// Row is one line of an examples table.
type Row struct {
	Columns []string
	Values  []string
	// Name identifies the row in generated scenario names, if set.
	Name string
}

// Examples is a named examples table.
type Examples struct {
	Name string
	Rows []Row
}

// NewRow zips columns with values. Missing trailing values read as "".
func NewRow(columns, values []string) Row {
	vs := make([]string, len(columns))
	copy(vs, values)
	return Row{Columns: columns, Values: vs}
}

// RowFromMap builds a row with columns in sorted order.
func RowFromMap(m map[string]string) Row {
	cols := sortedKeys(m)
	vals := make([]string, 0, len(cols))
	for _, c := range cols {
		vals = append(vals, m[c])
	}
	return Row{Columns: cols, Values: vals}
}

func (r Row) IsEmpty() bool { return len(r.Columns) == 0 }

func (r Row) Contains(column string) bool {
	_, ok := r.Value(column)
	return ok
}

// Value returns the cell under column.
func (r Row) Value(column string) (string, bool) {
	for i, c := range r.Columns {
		if c == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return "", false
}

// ToMap returns the row as column -> cell.
func (r Row) ToMap() map[string]string {
	out := make(map[string]string, len(r.Columns))
	for i, c := range r.Columns {
		if i < len(r.Values) {
			out[c] = r.Values[i]
		}
	}
	return out
}

var placeholder = regexp.MustCompile(`^\$\(([^)]+)\)$`)

// ReferenceLookup yields the value named key exported by the reference ref.
type ReferenceLookup func(ref, key string) (string, error)

// Substitute fills $(name) cells from variables and $(ref.name) cells from
// references. An unknown name is a ContractError.
func (r Row) Substitute(variables map[string]string, references ReferenceLookup) (Row, error) {
	values := make([]string, len(r.Values))
	for i, cell := range r.Values {
		m := placeholder.FindStringSubmatch(strings.TrimSpace(cell))
		if m == nil {
			values[i] = cell
			continue
		}
		name := m[1]
		if ref, key, ok := strings.Cut(name, "."); ok && references != nil {
			v, err := references(ref, key)
			if err != nil {
				return Row{}, NewContractError("Couldn't resolve %s: %s", cell, err.Error())
			}
			values[i] = v
			continue
		}
		v, ok := variables[name]
		if !ok {
			return Row{}, NewContractError("Variable %s was not supplied", name)
		}
		values[i] = v
	}
	return Row{Columns: r.Columns, Values: values, Name: r.Name}, nil
}
