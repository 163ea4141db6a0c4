package lifecycle

import "time"

// Voting session statuses.
const (
	SessionActive = "active"
	SessionClosed = "closed"
)

// Voting session kinds. Closing an admin election promotes the winner.
const (
	SessionGeneral       = "general"
	SessionAdminElection = "admin_election"
)

// SessionView is the part of a voting session that gates submission.
type SessionView struct {
	Status   string
	Deadline time.Time
}

// Open reports whether the session still accepts votes at now.
func (s SessionView) Open(now time.Time) bool {
	return s.Status == SessionActive && now.Before(s.Deadline)
}

// CanVote is true only for an active member without a vote while the
// session is open.
func CanVote(s SessionView, now time.Time, hasVoted, isMember bool) bool {
	return s.Open(now) && !hasVoted && isMember
}

// OptionResult is one row of a tally.
type OptionResult struct {
	Option     string  `json:"option"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Tally is the per-option breakdown of a session, in option order.
type Tally struct {
	Options []OptionResult `json:"options"`
	Total   int            `json:"total_votes"`
}

// TallyVotes counts votes per option. Votes naming options outside the
// list are ignored.
func TallyVotes(options []string, votes []string) Tally {
	counts := make(map[string]int, len(options))
	for _, v := range votes {
		counts[v]++
	}
	return TallyCounts(options, counts)
}

// TallyCounts builds a tally from pre-aggregated counts.
func TallyCounts(options []string, counts map[string]int) Tally {
	t := Tally{Options: make([]OptionResult, 0, len(options))}
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if seen[opt] {
			continue
		}
		seen[opt] = true
		n := counts[opt]
		t.Options = append(t.Options, OptionResult{Option: opt, Count: n})
		t.Total += n
	}
	if t.Total == 0 {
		return t
	}
	for i := range t.Options {
		t.Options[i].Percentage = round1(100 * float64(t.Options[i].Count) / float64(t.Total))
	}
	return t
}

// Leader returns the option with the most votes; ties go to the option
// declared first. ok is false when nobody voted.
func (t Tally) Leader() (OptionResult, bool) {
	if t.Total == 0 {
		return OptionResult{}, false
	}
	best := t.Options[0]
	for _, o := range t.Options[1:] {
		if o.Count > best.Count {
			best = o
		}
	}
	return best, true
}
