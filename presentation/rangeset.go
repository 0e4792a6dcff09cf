package presentation

import (
	"fmt"
	"sort"
	"strings"
)

// Range is a half-open byte interval [Start, End).
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

// RangeSet is a normalized set of byte indices: ranges are non-empty,
// sorted, disjoint and non-adjacent.
type RangeSet []Range

// NewRangeSet normalizes arbitrary ranges into a RangeSet.
func NewRangeSet(ranges ...Range) RangeSet {
	rs := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.End > r.Start {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
	out := RangeSet{}
	for _, r := range rs {
		if n := len(out); n > 0 && r.Start <= out[n-1].End {
			if r.End > out[n-1].End {
				out[n-1].End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func decodeRangeSet(d *decoder) RangeSet {
	n := d.seqLen(16)
	rs := make(RangeSet, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		rs = append(rs, Range{Start: d.usize(), End: d.usize()})
	}
	if d.err != nil {
		return nil
	}
	if err := rs.validate(); err != nil {
		d.fail("invalid range set", err)
		return nil
	}
	return rs
}

func (rs RangeSet) encode(e *encoder) {
	e.seqLen(len(rs))
	for _, r := range rs {
		e.usize(r.Start)
		e.usize(r.End)
	}
}

func (rs RangeSet) validate() error {
	for i, r := range rs {
		if r.Start >= r.End {
			return fmt.Errorf("empty or inverted range %d..%d", r.Start, r.End)
		}
		if i > 0 && r.Start <= rs[i-1].End {
			return fmt.Errorf("range %d..%d overlaps or touches its predecessor", r.Start, r.End)
		}
	}
	return nil
}

// Len returns the number of indices in the set.
func (rs RangeSet) Len() int {
	n := 0
	for _, r := range rs {
		n += r.Len()
	}
	return n
}

// End returns one past the largest index, or 0 for an empty set.
func (rs RangeSet) End() int {
	if len(rs) == 0 {
		return 0
	}
	return rs[len(rs)-1].End
}

func (rs RangeSet) Contains(i int) bool {
	j := sort.Search(len(rs), func(k int) bool { return rs[k].End > i })
	return j < len(rs) && rs[j].Start <= i
}

// ContainsRange reports whether every index of r is in the set.
func (rs RangeSet) ContainsRange(r Range) bool {
	if r.Len() <= 0 {
		return true
	}
	j := sort.Search(len(rs), func(k int) bool { return rs[k].End > r.Start })
	return j < len(rs) && rs[j].Start <= r.Start && rs[j].End >= r.End
}

func (rs RangeSet) Union(other RangeSet) RangeSet {
	all := make([]Range, 0, len(rs)+len(other))
	all = append(all, rs...)
	all = append(all, other...)
	return NewRangeSet(all...)
}

func (rs RangeSet) Equal(other RangeSet) bool {
	if len(rs) != len(other) {
		return false
	}
	for i := range rs {
		if rs[i] != other[i] {
			return false
		}
	}
	return true
}

// Indices returns every index in ascending order.
func (rs RangeSet) Indices() []int {
	out := make([]int, 0, rs.Len())
	for _, r := range rs {
		for i := r.Start; i < r.End; i++ {
			out = append(out, i)
		}
	}
	return out
}

func (rs RangeSet) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = fmt.Sprintf("%d..%d", r.Start, r.End)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
