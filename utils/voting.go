package utils

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"gpodo/lifecycle"
	"gpodo/models"
)

var ErrSessionNotActive = errors.New("voting session is not active")

// TallyOption is a tally row enriched with the option's identity.
type TallyOption struct {
	ID          uint    `json:"id"`
	Label       string  `json:"label"`
	CandidateID *uint   `json:"candidate_id,omitempty"`
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
}

// SessionTally is the live result of a voting session.
type SessionTally struct {
	SessionID      uint          `json:"session_id"`
	Status         string        `json:"status"`
	Options        []TallyOption `json:"options"`
	TotalVotes     int           `json:"total_votes"`
	WinnerOptionID *uint         `json:"winner_option_id,omitempty"`
	// set when an election winner had left the group before the close
	WinnerNotMember bool `json:"winner_not_member,omitempty"`

	leading *TallyOption
}

// TallyMessage is pushed to live subscribers of a session.
type TallyMessage struct {
	Type  string        `json:"type"` // tally, closed
	Tally *SessionTally `json:"tally"`
}

type optionCount struct {
	OptionID uint
	Votes    int
}

// LoadSessionTally aggregates votes per option with a single GROUP BY.
// session.Options must be loaded.
func LoadSessionTally(db *gorm.DB, session *models.VotingSession) (*SessionTally, error) {
	var rows []optionCount
	if err := db.Model(&models.Vote{}).
		Select("option_id, COUNT(*) AS votes").
		Where("voting_session_id = ?", session.ID).
		Group("option_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[optionKey(r.OptionID)] = r.Votes
	}
	keys := make([]string, len(session.Options))
	for i, opt := range session.Options {
		keys[i] = optionKey(opt.ID)
	}
	tally := lifecycle.TallyCounts(keys, counts)

	out := &SessionTally{
		SessionID:      session.ID,
		Status:         session.Status,
		TotalVotes:     tally.Total,
		WinnerOptionID: session.WinnerOptionID,
		Options:        make([]TallyOption, len(session.Options)),
	}
	for i, opt := range session.Options {
		out.Options[i] = TallyOption{
			ID:          opt.ID,
			Label:       opt.Label,
			CandidateID: opt.CandidateID,
			Count:       tally.Options[i].Count,
			Percentage:  tally.Options[i].Percentage,
		}
	}
	if leader, ok := tally.Leader(); ok {
		for i := range out.Options {
			if keys[i] == leader.Option {
				out.leading = &out.Options[i]
				break
			}
		}
	}
	return out, nil
}

// CloseVotingSession closes an active session, records the winning
// option and, for admin elections, promotes the winner. The status flip
// is conditional so concurrent closers cannot both apply results.
func CloseVotingSession(db *gorm.DB, sessionID uint, now time.Time) (*models.VotingSession, *SessionTally, error) {
	var session models.VotingSession
	var tally *SessionTally

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.VotingSession{}).
			Where("id = ? AND status = ?", sessionID, lifecycle.SessionActive).
			Updates(map[string]interface{}{
				"status":    lifecycle.SessionClosed,
				"closed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotActive
		}

		if err := tx.Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).First(&session, sessionID).Error; err != nil {
			return err
		}

		var err error
		tally, err = LoadSessionTally(tx, &session)
		if err != nil {
			return err
		}

		winner := tally.leading
		if winner == nil {
			return nil
		}
		session.WinnerOptionID = &winner.ID
		tally.WinnerOptionID = &winner.ID
		if err := tx.Model(&session).Update("winner_option_id", winner.ID).Error; err != nil {
			return err
		}

		if session.Kind != lifecycle.SessionAdminElection || winner.CandidateID == nil {
			return nil
		}
		res = tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ? AND status = ?", session.GroupID, *winner.CandidateID, lifecycle.MemberActive).
			Updates(map[string]interface{}{
				"role":       lifecycle.RoleAdmin,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			tally.WinnerNotMember = true
			LogEvent("election_winner_not_member", map[string]interface{}{
				"group_id":     session.GroupID,
				"session_id":   session.ID,
				"candidate_id": *winner.CandidateID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &session, tally, nil
}

func optionKey(id uint) string {
	return FormatID(id)
}
