package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/de-tools/case-atlas/pkg/records"
)

// CountBy ranks the distinct values of field by number of rows. Rows with a
// blank value are excluded from both the groups and the denominator.
func CountBy(rs *records.RecordSet, field string) (Breakdown, error) {
	return By(rs, field, CountOf())
}

// SumBy ranks the distinct values of field by the sum of metricField.
// Missing metric values count as zero.
func SumBy(rs *records.RecordSet, field, metricField string) (Breakdown, error) {
	return By(rs, field, SumOf(metricField))
}

// By computes the breakdown of field under metric.
func By(rs *records.RecordSet, field string, metric Metric) (Breakdown, error) {
	switch metric.Kind {
	case Count:
		if err := rs.Require(field); err != nil {
			return Breakdown{}, err
		}
	case Sum:
		if metric.Field == "" {
			return Breakdown{}, fmt.Errorf("sum metric for %q has no field", field)
		}
		if err := rs.Require(field, metric.Field); err != nil {
			return Breakdown{}, err
		}
	default:
		return Breakdown{}, fmt.Errorf("unsupported metric %q", metric.Kind)
	}

	type group struct {
		value float64
		count int
		first int
	}
	groups := make(map[string]*group)
	order := make([]string, 0)
	b := Breakdown{Field: field, Metric: metric}

	for i := 0; i < rs.Size(); i++ {
		r := rs.At(i)
		key := r.Value(field)
		if key == "" {
			b.Excluded++
			continue
		}
		g, exists := groups[key]
		if !exists {
			g = &group{first: r.Position()}
			groups[key] = g
			order = append(order, key)
		}
		if r.Position() < g.first {
			g.first = r.Position()
		}
		g.count++
		b.Rows++
		if metric.Kind == Count {
			g.value++
		} else if v, ok := r.Number(metric.Field); ok {
			g.value += v
		}
	}

	for _, key := range order {
		b.Total += groups[key].value
	}
	if b.Total == 0 {
		return Breakdown{}, fmt.Errorf("%w: %s by %s over %d rows", ErrDivisionByZero, metric, field, rs.Size())
	}

	b.Entries = make([]Entry, 0, len(order))
	for _, key := range order {
		g := groups[key]
		b.Entries = append(b.Entries, Entry{
			Key:       key,
			Value:     g.value,
			Count:     g.count,
			Share:     g.value * 100 / b.Total,
			FirstSeen: g.first,
		})
	}
	sortEntries(b.Entries)
	setPercents(b.Entries)
	return b, nil
}

// sortEntries orders by value descending, then by load position, so the
// result does not depend on the iteration order of the view.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].FirstSeen < entries[j].FirstSeen
	})
}

// TopNBreakdown is a Breakdown cut to its first Limit entries, optionally
// followed by one Other entry carrying the remainder. Retained entries keep
// the percentages of the source breakdown. Without an Other entry the
// percentages of a truncated result sum to less than 100; Dropped counts the
// entries cut that way.
type TopNBreakdown struct {
	Breakdown `yaml:",inline"`
	Limit     int `yaml:"limit"`
	Bucketed  int `yaml:"bucketed"` // entries folded into Other
	Dropped   int `yaml:"dropped"`  // entries cut without an Other entry
}

// HasOther reports whether the last entry is a synthetic remainder bucket.
func (t TopNBreakdown) HasOther() bool {
	n := len(t.Entries)
	return n > 0 && t.Entries[n-1].Other
}

// TopN keeps the first n entries of b. With a non-empty otherLabel the
// remaining entries are summed into one trailing entry, which is omitted when
// nothing remains. n <= 0 keeps every entry. Percentages are never
// re-apportioned: Other carries the rounded percentages of the entries it
// folds, so a breakdown already narrowed by Keep keeps its denominator.
func TopN(b Breakdown, n int, otherLabel string) TopNBreakdown {
	out := TopNBreakdown{Breakdown: b.clone(), Limit: n}
	if n <= 0 || n >= len(b.Entries) {
		return out
	}

	rest := b.Entries[n:]
	out.Entries = append([]Entry(nil), b.Entries[:n]...)
	if otherLabel == "" {
		out.Dropped = len(rest)
		return out
	}

	other := Entry{Key: otherLabel, Other: true, FirstSeen: rest[0].FirstSeen}
	var tenths int64
	for _, e := range rest {
		other.Value += e.Value
		other.Count += e.Count
		other.Share += e.Share
		tenths += int64(math.Round(e.Percent * 10))
		if e.FirstSeen < other.FirstSeen {
			other.FirstSeen = e.FirstSeen
		}
	}
	other.Percent = float64(tenths) / 10
	out.Entries = append(out.Entries, other)
	out.Bucketed = len(rest)
	return out
}
