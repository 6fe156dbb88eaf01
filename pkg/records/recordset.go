package records

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// table is the loaded data shared by every view derived from it. It is never
// written after Load returns.
type table struct {
	columns []string
	index   map[string]int
	kinds   map[string]Kind
	cells   [][]string
	numbers map[string][]float64 // NaN marks a missing value
}

// RecordSet is an immutable, ordered view over a loaded table. Every
// transformation returns a new RecordSet that shares the underlying rows.
type RecordSet struct {
	t        *table
	idx      []int // load positions, in iteration order
	defaults map[string]string
	derived  map[string][]string // indexed by load position
}

// Load builds a RecordSet from a header row and data rows. Header cells are
// trimmed. It fails with a SchemaError if a schema field has no column.
func Load(header []string, rows [][]string, schema Schema) (*RecordSet, error) {
	t := &table{
		index:   make(map[string]int, len(header)),
		kinds:   make(map[string]Kind, len(header)),
		numbers: make(map[string][]float64),
	}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, dup := t.index[name]; dup || name == "" {
			continue
		}
		t.columns = append(t.columns, name)
		t.index[name] = i
		t.kinds[name] = Categorical
	}

	var missing []string
	for _, f := range schema.Fields {
		if _, ok := t.index[f.Name]; !ok {
			missing = append(missing, f.Name)
			continue
		}
		t.kinds[f.Name] = f.Kind
	}
	if len(missing) > 0 {
		return nil, missingFields(missing...)
	}

	t.cells = make([][]string, len(rows))
	for r, row := range rows {
		cells := make([]string, len(header))
		for c := 0; c < len(header) && c < len(row); c++ {
			cells[c] = strings.TrimSpace(row[c])
		}
		t.cells[r] = cells
	}

	for name, kind := range t.kinds {
		if kind != Numeric {
			continue
		}
		col := t.index[name]
		values := make([]float64, len(rows))
		for r := range t.cells {
			values[r] = parseNumber(t.cells[r][col])
		}
		t.numbers[name] = values
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	return &RecordSet{t: t, idx: idx}, nil
}

func parseNumber(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (rs *RecordSet) derive(idx []int) *RecordSet {
	return &RecordSet{t: rs.t, idx: idx, defaults: rs.defaults, derived: rs.derived}
}

// Size returns the number of rows in the view.
func (rs *RecordSet) Size() int { return len(rs.idx) }

// Has reports whether field is a loaded column or a derived column of this view.
func (rs *RecordSet) Has(field string) bool {
	if _, ok := rs.t.index[field]; ok {
		return true
	}
	_, ok := rs.derived[field]
	return ok
}

// Require returns a SchemaError naming every field the view does not carry.
func (rs *RecordSet) Require(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if f != "" && !rs.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return missingFields(missing...)
	}
	return nil
}

// Fields returns the loaded column names in header order followed by derived columns.
func (rs *RecordSet) Fields() []string {
	out := append([]string(nil), rs.t.columns...)
	return append(out, rs.derivedNames()...)
}

func (rs *RecordSet) derivedNames() []string {
	var names []string
	for name := range rs.derived {
		if _, loaded := rs.t.index[name]; !loaded {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// At returns the i-th record of the view.
func (rs *RecordSet) At(i int) Record {
	return Record{rs: rs, pos: rs.idx[i]}
}

// Filter returns the rows for which keep returns true, in the same order.
func (rs *RecordSet) Filter(keep func(Record) bool) *RecordSet {
	idx := make([]int, 0, len(rs.idx))
	for _, pos := range rs.idx {
		if keep(Record{rs: rs, pos: pos}) {
			idx = append(idx, pos)
		}
	}
	return rs.derive(idx)
}

// Partition splits the view by the value of field, keeping row order within
// each part. Rows with a blank value are not assigned to any part.
func (rs *RecordSet) Partition(field string) map[string]*RecordSet {
	grouped := make(map[string][]int)
	for _, pos := range rs.idx {
		key := (Record{rs: rs, pos: pos}).Value(field)
		if key == "" {
			continue
		}
		grouped[key] = append(grouped[key], pos)
	}
	parts := make(map[string]*RecordSet, len(grouped))
	for key, idx := range grouped {
		parts[key] = rs.derive(idx)
	}
	return parts
}

// Where keeps rows whose field equals one of values.
func (rs *RecordSet) Where(field string, values ...string) *RecordSet {
	allowed := make(map[string]bool, len(values))
	for _, v := range values {
		allowed[v] = true
	}
	return rs.Filter(func(r Record) bool { return allowed[r.Value(field)] })
}

// Matching keeps rows whose field matches pattern.
func (rs *RecordSet) Matching(field string, pattern *regexp.Regexp) *RecordSet {
	return rs.Filter(func(r Record) bool { return pattern.MatchString(r.Value(field)) })
}

// WithDefault returns a view in which blank values of field read as label.
func (rs *RecordSet) WithDefault(field, label string) (*RecordSet, error) {
	if !rs.Has(field) {
		return nil, missingFields(field)
	}
	defaults := make(map[string]string, len(rs.defaults)+1)
	for k, v := range rs.defaults {
		defaults[k] = v
	}
	defaults[field] = label
	return &RecordSet{t: rs.t, idx: rs.idx, defaults: defaults, derived: rs.derived}, nil
}

// Reorder returns the same rows iterated in a different order; perm[i] is the
// view position that becomes position i. Load order is unaffected.
func (rs *RecordSet) Reorder(perm []int) (*RecordSet, error) {
	if len(perm) != len(rs.idx) {
		return nil, fmt.Errorf("permutation has %d entries, view has %d rows", len(perm), len(rs.idx))
	}
	seen := make([]bool, len(perm))
	idx := make([]int, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, fmt.Errorf("invalid permutation at position %d", i)
		}
		seen[p] = true
		idx[i] = rs.idx[p]
	}
	return rs.derive(idx), nil
}

// Sum adds up a numeric field over the view, skipping missing values.
func (rs *RecordSet) Sum(field string) float64 {
	var total float64
	for _, pos := range rs.idx {
		if v, ok := (Record{rs: rs, pos: pos}).Number(field); ok {
			total += v
		}
	}
	return total
}

// ResolveIndicators returns the indicator columns to report on: the explicit
// list when given, otherwise every loaded column whose name starts with prefix.
func (rs *RecordSet) ResolveIndicators(prefix string, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		if err := rs.Require(explicit...); err != nil {
			return nil, err
		}
		return append([]string(nil), explicit...), nil
	}
	var cols []string
	if prefix != "" {
		for _, c := range rs.t.columns {
			if strings.HasPrefix(c, prefix) {
				cols = append(cols, c)
			}
		}
	}
	if len(cols) == 0 {
		return nil, &SchemaError{Fields: []string{prefix + "*"}, Reason: "no indicator columns match"}
	}
	return cols, nil
}

// Record is a single row seen through a RecordSet.
type Record struct {
	rs  *RecordSet
	pos int
}

// Position is the row's index in load order.
func (r Record) Position() int { return r.pos }

// Value returns the trimmed string value of field, applying derived columns
// and default labels of the view.
func (r Record) Value(field string) string {
	if col, ok := r.rs.derived[field]; ok {
		if v := col[r.pos]; v != "" {
			return v
		}
		return r.rs.defaults[field]
	}
	var v string
	if c, ok := r.rs.t.index[field]; ok {
		v = r.rs.t.cells[r.pos][c]
	}
	if v == "" {
		return r.rs.defaults[field]
	}
	return v
}

// Number returns the numeric value of field and whether it is present.
func (r Record) Number(field string) (float64, bool) {
	if col, ok := r.rs.t.numbers[field]; ok {
		v := col[r.pos]
		return v, !math.IsNaN(v)
	}
	v := parseNumber(r.Value(field))
	return v, !math.IsNaN(v)
}
