package aggregate

import (
	"errors"
	"fmt"
	"math"
)

// ErrDivisionByZero is returned when percentages would be computed over an
// empty universe: no grouped rows, or a metric that sums to zero.
var ErrDivisionByZero = errors.New("division by zero")

// MetricKind selects how rows of a group are reduced to one value.
type MetricKind string

const (
	Count MetricKind = "count"
	Sum   MetricKind = "sum"
)

// Metric is the value a breakdown ranks groups by.
type Metric struct {
	Kind  MetricKind `mapstructure:"kind" yaml:"kind"`
	Field string     `mapstructure:"field" yaml:"field,omitempty"`
}

// CountOf ranks groups by number of rows.
func CountOf() Metric { return Metric{Kind: Count} }

// SumOf ranks groups by the sum of a numeric field.
func SumOf(field string) Metric { return Metric{Kind: Sum, Field: field} }

func (m Metric) String() string {
	if m.Kind == Sum {
		return fmt.Sprintf("sum(%s)", m.Field)
	}
	return string(Count)
}

// Entry is one ranked group of a Breakdown.
type Entry struct {
	Key       string  `yaml:"key"`
	Value     float64 `yaml:"value"`
	Count     int     `yaml:"count"`
	Share     float64 `yaml:"share"`   // unrounded percentage
	Percent   float64 `yaml:"percent"` // one decimal, half-to-even
	FirstSeen int     `yaml:"-"`       // smallest load position in the group
	Other     bool    `yaml:"other,omitempty"`
}

// Breakdown is the ranked distribution of a metric over one field. Entries are
// sorted by Value descending; equal values keep first-encountered load order.
type Breakdown struct {
	Field    string  `yaml:"field"`
	Metric   Metric  `yaml:"metric"`
	Entries  []Entry `yaml:"entries"`
	Total    float64 `yaml:"total"`    // percentage denominator
	Rows     int     `yaml:"rows"`     // rows that entered a group
	Excluded int     `yaml:"excluded"` // rows with a blank key
}

// Len returns the number of entries.
func (b Breakdown) Len() int { return len(b.Entries) }

// Empty reports whether the breakdown has no entries.
func (b Breakdown) Empty() bool { return len(b.Entries) == 0 }

// Keys returns entry keys in order.
func (b Breakdown) Keys() []string {
	keys := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		keys[i] = e.Key
	}
	return keys
}

// Lookup finds the entry for key.
func (b Breakdown) Lookup(key string) (Entry, bool) {
	for _, e := range b.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// PercentSum adds up the rounded percentages of all entries.
func (b Breakdown) PercentSum() float64 {
	var tenths int64
	for _, e := range b.Entries {
		tenths += int64(math.Round(e.Percent * 10))
	}
	return float64(tenths) / 10
}

// InOrder lists entries in the order of keys. Keys without an entry are
// skipped; entries whose key is not listed follow in their existing order.
// Percentages are unchanged.
func (b Breakdown) InOrder(keys []string) Breakdown {
	byKey := make(map[string]int, len(b.Entries))
	for i, e := range b.Entries {
		byKey[e.Key] = i
	}
	used := make([]bool, len(b.Entries))
	entries := make([]Entry, 0, len(b.Entries))
	for _, k := range keys {
		if i, ok := byKey[k]; ok && !used[i] {
			used[i] = true
			entries = append(entries, b.Entries[i])
		}
	}
	for i, e := range b.Entries {
		if !used[i] {
			entries = append(entries, e)
		}
	}
	b.Entries = entries
	return b
}

// Keep returns the entries for which keep is true. Percentages keep their
// original denominator.
func (b Breakdown) Keep(keep func(Entry) bool) Breakdown {
	entries := make([]Entry, 0, len(b.Entries))
	for _, e := range b.Entries {
		if keep(e) {
			entries = append(entries, e)
		}
	}
	b.Entries = entries
	return b
}

func (b Breakdown) clone() Breakdown {
	b.Entries = append([]Entry(nil), b.Entries...)
	return b
}

// RoundPercent rounds a percentage to one decimal place, half to even.
func RoundPercent(p float64) float64 {
	return math.RoundToEven(p*10) / 10
}

// Percent returns part as a rounded percentage of whole.
func Percent(part, whole float64) (float64, error) {
	if whole == 0 {
		return 0, fmt.Errorf("%w: percentage of an empty total", ErrDivisionByZero)
	}
	return RoundPercent(part * 100 / whole), nil
}

// apportion rounds shares (which add up to 100) to one decimal place. When the
// rounded values drift from 100 by more than 0.1, entries are moved by 0.1 in
// order of their rounding residual. Entries with equal residuals move together
// when the drift allows it; otherwise only the lowest ranked of them move.
func apportion(shares []float64) []float64 {
	tenths := make([]int64, len(shares))
	var sum int64
	for i, s := range shares {
		tenths[i] = int64(math.RoundToEven(s * 10))
		sum += tenths[i]
	}
	drift := 1000 - sum
	moved := make([]bool, len(shares))
	for drift > 1 || drift < -1 {
		step := int64(1)
		if drift < 0 {
			step = -1
		}
		var group []int
		var bestResidual float64
		for i, s := range shares {
			if moved[i] || tenths[i]+step < 0 {
				continue
			}
			residual := (s*10 - float64(tenths[i])) * float64(step)
			switch {
			case len(group) == 0 || residual > bestResidual+1e-9:
				group, bestResidual = []int{i}, residual
			case math.Abs(residual-bestResidual) <= 1e-9:
				group = append(group, i)
			}
		}
		if len(group) == 0 {
			break
		}
		needed := int(drift*step) - 1
		if len(group) > needed {
			group = group[len(group)-needed:]
		}
		for _, i := range group {
			tenths[i] += step
			moved[i] = true
		}
		drift -= step * int64(len(group))
	}
	out := make([]float64, len(shares))
	for i, t := range tenths {
		out[i] = float64(t) / 10
	}
	return out
}

func setPercents(entries []Entry) {
	shares := make([]float64, len(entries))
	for i, e := range entries {
		shares[i] = e.Share
	}
	for i, p := range apportion(shares) {
		entries[i].Percent = p
	}
}
