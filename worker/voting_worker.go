package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gpodo/cache"
	"gpodo/lifecycle"
	"gpodo/models"
	"gpodo/utils"
)

const expiredBatchSize = 100

// VotingWorker closes sessions whose deadline has passed and applies
// their results.
type VotingWorker struct {
	DB       *gorm.DB
	Cache    cache.Cache
	Hub      *cache.TallyHub
	Logger   *logrus.Entry
	Interval time.Duration
}

func NewVotingWorker(db *gorm.DB, c cache.Cache, hub *cache.TallyHub, interval time.Duration) *VotingWorker {
	if c == nil {
		c = cache.NoopCache{}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &VotingWorker{
		DB:       db,
		Cache:    c,
		Hub:      hub,
		Logger:   logrus.WithField("component", "voting_worker"),
		Interval: interval,
	}
}

func (vw *VotingWorker) Start(ctx context.Context) {
	vw.Logger.WithField("interval", vw.Interval.String()).Info("Voting worker started")

	ticker := time.NewTicker(vw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			vw.Logger.Info("Voting worker shutting down...")
			return
		case now := <-ticker.C:
			if closed := vw.RunOnce(ctx, now); closed > 0 {
				vw.Logger.WithField("closed", closed).Info("Closed expired voting sessions")
			}
		}
	}
}

// RunOnce closes every active session past its deadline at now and
// returns how many it closed. Sessions closed concurrently by a manager
// are skipped.
func (vw *VotingWorker) RunOnce(ctx context.Context, now time.Time) int {
	var expired []models.VotingSession
	if err := vw.DB.WithContext(ctx).
		Select("id", "group_id").
		Where("status = ? AND deadline <= ?", lifecycle.SessionActive, now).
		Order("deadline ASC").
		Limit(expiredBatchSize).
		Find(&expired).Error; err != nil {
		utils.LogError("voting_worker_scan", err, nil)
		return 0
	}

	closed := 0
	for _, s := range expired {
		session, tally, err := utils.CloseVotingSession(vw.DB.WithContext(ctx), s.ID, now)
		if errors.Is(err, utils.ErrSessionNotActive) {
			continue
		}
		if err != nil {
			utils.LogError("voting_worker_close", err, map[string]interface{}{"session_id": s.ID})
			continue
		}

		closed++
		utils.SessionsClosed.WithLabelValues("deadline").Inc()
		if err := cache.InvalidateGroup(ctx, vw.Cache, session.GroupID); err != nil {
			utils.LogError("group_cache_invalidate", err, map[string]interface{}{"group_id": session.GroupID})
		}
		if vw.Hub != nil {
			vw.Hub.Broadcast(session.ID, utils.TallyMessage{Type: "closed", Tally: tally})
		}
		vw.Logger.WithFields(logrus.Fields{
			"session_id": session.ID,
			"group_id":   session.GroupID,
			"kind":       session.Kind,
		}).Debug("voting session expired")
	}
	return closed
}
