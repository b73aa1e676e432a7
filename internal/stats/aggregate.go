// Package stats derives per-status counts for dashboards.
package stats

import "github.com/dharsanguruparan/jansevak/internal/model"

// Counts maps a status to the number of complaints in it. Statuses with no
// complaints are absent; use Get to read with a zero default.
type Counts map[model.Status]int

// Get returns the count for s, or 0 when s is absent.
func (c Counts) Get(s model.Status) int {
	return c[s]
}

// Total sums every count.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Aggregate counts complaints per status. It is recomputed on every call and
// never touches the store.
func Aggregate(complaints []model.Complaint) Counts {
	out := make(Counts)
	for _, c := range complaints {
		out[c.Status]++
	}
	return out
}
