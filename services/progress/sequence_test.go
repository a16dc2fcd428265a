package progress

import (
	"testing"
	"time"

	"coursebridge/models/learning"

	"github.com/stretchr/testify/assert"
)

func elems(statuses ...string) []learning.ProgressElement {
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]learning.ProgressElement, len(statuses))
	for i, s := range statuses {
		out[i] = learning.ProgressElement{Position: i, AssignOn: past, Status: s}
	}
	return out
}

func TestSequenceOrderEnforced(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	states := Sequence(elems("", "", ""), true, at)
	assert.Equal(t, []string{"assigned", "locked", "locked"}, states)

	// completing A unlocks B only
	states = Sequence(elems("completed", "", ""), true, at)
	assert.Equal(t, []string{"completed", "assigned", "locked"}, states)

	states = Sequence(elems("completed", "in_progress", ""), true, at)
	assert.Equal(t, []string{"completed", "in_progress", "locked"}, states)
}

func TestSequenceWithoutOrder(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	states := Sequence(elems("", "", ""), false, at)
	assert.Equal(t, []string{"assigned", "assigned", "assigned"}, states)
}

func TestSequenceFutureAssignOn(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e := elems("", "", "")
	e[1].AssignOn = at.Add(48 * time.Hour)

	assert.Equal(t, []string{"assigned", "locked", "assigned"}, Sequence(e, false, at))

	// with order enforced the future element blocks its successor too
	e[0].Status = learning.ElementCompleted
	assert.Equal(t, []string{"completed", "locked", "locked"}, Sequence(e, true, at))

	// once the date passes the element opens without a stored snapshot changing
	assert.Equal(t, []string{"completed", "assigned", "locked"}, Sequence(e, true, at.Add(72*time.Hour)))
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name string
		in   []learning.ProgressElement
		want float64
	}{
		{"empty", nil, 0},
		{"none", elems("", ""), 0},
		{"one of three", elems("completed", "", "in_progress"), 33.33},
		{"all", elems("completed", "completed"), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.in))
		})
	}
}
