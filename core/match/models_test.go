package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func played(gf, ga int) Match {
	return Match{Status: StatusPlayed, GoalsFor: null.IntFrom(gf), GoalsAgainst: null.IntFrom(ga)}
}

func TestComputeOutcome(t *testing.T) {
	tests := []struct {
		name  string
		match Match
		want  string
	}{
		{name: "win", match: played(3, 1), want: OutcomeWin},
		{name: "draw", match: played(2, 2), want: OutcomeDraw},
		{name: "loss", match: played(0, 4), want: OutcomeLoss},
		{name: "scheduled", match: Match{Status: StatusScheduled}, want: ""},
		{name: "played without score", match: Match{Status: StatusPlayed}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.match.ComputeOutcome())
			assert.Equal(t, tt.want != "", tt.match.WithOutcome().Outcome.Valid)
		})
	}
}

func TestRecordAdd(t *testing.T) {
	rec := Record{TeamID: "t"}
	for _, m := range []Match{played(3, 1), played(1, 1), played(0, 2), {Status: StatusCancelled}} {
		rec.Add(m)
	}
	assert.Equal(t, Record{TeamID: "t", Played: 3, Won: 1, Drawn: 1, Lost: 1, GoalsFor: 4, GoalsAgainst: 4}, rec)
	assert.Equal(t, 0, rec.GoalDifference())
}
