package lifecycle

import (
	"math"
	"testing"
	"time"
)

func TestTallyScenario(t *testing.T) {
	tally := TallyVotes([]string{"A", "B"}, []string{"A", "A", "B"})
	if tally.Total != 3 {
		t.Fatalf("total = %d", tally.Total)
	}
	want := []OptionResult{{"A", 2, 66.7}, {"B", 1, 33.3}}
	for i, w := range want {
		if tally.Options[i] != w {
			t.Fatalf("option %d = %+v, want %+v", i, tally.Options[i], w)
		}
	}
	leader, ok := tally.Leader()
	if !ok || leader.Option != "A" {
		t.Fatalf("leader = %+v, %v", leader, ok)
	}
}

func TestTallyPercentagesSumToHundred(t *testing.T) {
	cases := [][]string{
		{"A"},
		{"A", "B", "C"},
		{"A", "A", "B", "C", "C", "C", "D"},
		{"B", "B", "B", "B", "B", "B", "A"},
	}
	for _, votes := range cases {
		tally := TallyVotes([]string{"A", "B", "C", "D"}, votes)
		sum := 0.0
		for _, o := range tally.Options {
			sum += o.Percentage
		}
		if math.Abs(sum-100) > 0.2 {
			t.Fatalf("votes %v: percentages sum to %v", votes, sum)
		}
	}
}

func TestTallyEmpty(t *testing.T) {
	tally := TallyVotes([]string{"yes", "no"}, nil)
	if tally.Total != 0 {
		t.Fatalf("total = %d", tally.Total)
	}
	for _, o := range tally.Options {
		if o.Percentage != 0 || o.Count != 0 {
			t.Fatalf("expected zero row, got %+v", o)
		}
	}
	if _, ok := tally.Leader(); ok {
		t.Fatalf("empty tally has no leader")
	}
}

func TestTallyIgnoresUnknownOptions(t *testing.T) {
	tally := TallyVotes([]string{"A", "B"}, []string{"A", "Z", "Z"})
	if tally.Total != 1 || tally.Options[0].Percentage != 100 {
		t.Fatalf("unexpected tally %+v", tally)
	}
}

func TestLeaderTieGoesToFirstOption(t *testing.T) {
	tally := TallyVotes([]string{"A", "B"}, []string{"B", "A"})
	leader, _ := tally.Leader()
	if leader.Option != "A" {
		t.Fatalf("tie leader = %q", leader.Option)
	}
}

func TestCanVote(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	active := SessionView{Status: SessionActive, Deadline: now.Add(time.Hour)}

	tests := []struct {
		name     string
		session  SessionView
		hasVoted bool
		isMember bool
		want     bool
	}{
		{"open session member", active, false, true, true},
		{"already voted", active, true, true, false},
		{"not a member", active, false, false, false},
		{"deadline reached", SessionView{Status: SessionActive, Deadline: now}, false, true, false},
		{"deadline passed", SessionView{Status: SessionActive, Deadline: now.Add(-time.Second)}, false, true, false},
		{"closed session", SessionView{Status: SessionClosed, Deadline: now.Add(time.Hour)}, false, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanVote(tc.session, now, tc.hasVoted, tc.isMember); got != tc.want {
				t.Fatalf("CanVote = %v, want %v", got, tc.want)
			}
		})
	}
}
