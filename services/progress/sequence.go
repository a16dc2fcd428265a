// Package progress owns progress records: one per (assignment or enrollment,
// learner), each with an ordered list of elements whose lock state is derived
// from the schedule on every read.
package progress

import (
	"math"
	"time"

	"coursebridge/models/learning"
)

// Sequence derives the status of every element. Persisted facts (in_progress,
// completed, expired) are returned as-is; otherwise an element is locked when
// its assign-on date is in the future or, with order enforced, when the element
// immediately before it is not completed. Everything else is assigned.
func Sequence(elements []learning.ProgressElement, enforceOrder bool, now time.Time) []string {
	states := make([]string, len(elements))
	for i, e := range elements {
		switch {
		case e.Status != "":
			states[i] = e.Status
		case e.AssignOn.After(now):
			states[i] = learning.ElementLocked
		case enforceOrder && i > 0 && states[i-1] != learning.ElementCompleted:
			states[i] = learning.ElementLocked
		default:
			states[i] = learning.ElementAssigned
		}
	}
	return states
}

// Percentage is the share of completed elements, rounded to two decimals.
func Percentage(elements []learning.ProgressElement) float64 {
	if len(elements) == 0 {
		return 0
	}
	completed := 0
	for _, e := range elements {
		if e.Status == learning.ElementCompleted {
			completed++
		}
	}
	pct := float64(completed) / float64(len(elements)) * 100
	return math.Round(pct*100) / 100
}
