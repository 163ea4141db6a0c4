package controller

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gpodo/cache"
	"gpodo/lifecycle"
	"gpodo/models"
	"gpodo/utils"
)

const maxSessionOptions = 20

type VotingController struct {
	groupStore
	Hub    *cache.TallyHub
	Logger *logrus.Entry
}

func NewVotingController(db *gorm.DB, c cache.Cache, ttl time.Duration, hub *cache.TallyHub) *VotingController {
	logger := logrus.WithField("component", "voting")
	if hub == nil {
		hub = cache.NewTallyHub(logger)
	}
	return &VotingController{
		groupStore: newGroupStore(db, c, ttl),
		Hub:        hub,
		Logger:     logger,
	}
}

type createSessionRequest struct {
	Title        string    `json:"title" validate:"required,max=200"`
	Description  string    `json:"description" validate:"max=2000"`
	Kind         string    `json:"kind" validate:"omitempty,oneof=general admin_election"`
	Options      []string  `json:"options" validate:"max=20,dive,max=200"`
	CandidateIDs []uint    `json:"candidate_ids" validate:"max=20"`
	Deadline     time.Time `json:"deadline" validate:"required"`
}

func (vc *VotingController) CreateSession(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	var req createSessionRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if req.Kind == "" {
		req.Kind = lifecycle.SessionGeneral
	}
	if !req.Deadline.After(time.Now()) {
		return badRequest(c, "deadline must be in the future")
	}
	req.Title = utils.SanitizeText(req.Title)
	req.Description = utils.SanitizeText(req.Description)
	if req.Title == "" {
		return badRequest(c, "title is required")
	}

	userID := currentUserID(c)
	ctx := c.UserContext()
	acc, err := vc.access(ctx, groupID, userID)
	if err != nil {
		return respondError(c, err)
	}
	if !canRunSession(acc, req.Kind) {
		return respondError(c, ErrNotManager)
	}
	section := lifecycle.SectionVoting
	if req.Kind == lifecycle.SessionAdminElection {
		section = lifecycle.SectionAdminElection
	}
	if !lifecycle.CanShowComponent(acc.Phase, section) {
		return respondError(c, ErrSectionClosed)
	}

	session := models.VotingSession{
		GroupID:     groupID,
		Title:       req.Title,
		Description: req.Description,
		Kind:        req.Kind,
		Status:      lifecycle.SessionActive,
		Deadline:    req.Deadline,
		CreatedBy:   userID,
	}

	if req.Kind == lifecycle.SessionAdminElection {
		opts, err := vc.candidateOptions(ctx, groupID, req.CandidateIDs)
		if err != nil {
			return respondError(c, err)
		}
		session.Options = opts
	} else {
		labels := distinct(utils.SanitizeAll(req.Options))
		if len(labels) < 2 {
			return badRequest(c, "at least two distinct options are required")
		}
		for i, label := range labels {
			session.Options = append(session.Options, models.VotingOption{Position: i, Label: label})
		}
	}
	if len(session.Options) > maxSessionOptions {
		return badRequest(c, "too many options")
	}

	if err := vc.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return respondError(c, err)
	}

	vc.invalidate(ctx, groupID)
	vc.Logger.WithFields(logrus.Fields{
		"group_id":   groupID,
		"session_id": session.ID,
		"kind":       session.Kind,
	}).Info("voting session created")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Voting session created",
		"session": session,
	})
}

// candidateOptions turns candidate user ids into options. Every candidate
// must be an active member.
func (vc *VotingController) candidateOptions(ctx context.Context, groupID uint, ids []uint) ([]models.VotingOption, error) {
	seen := make(map[uint]bool, len(ids))
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(unique) < 2 {
		return nil, ErrInvalidCandidates
	}

	var members []models.GroupMember
	if err := vc.DB.WithContext(ctx).Preload("User").
		Where("group_id = ? AND status = ? AND user_id IN ?", groupID, lifecycle.MemberActive, unique).
		Find(&members).Error; err != nil {
		return nil, err
	}
	byUser := make(map[uint]models.GroupMember, len(members))
	for _, m := range members {
		byUser[m.UserID] = m
	}

	opts := make([]models.VotingOption, 0, len(unique))
	for i, id := range unique {
		m, ok := byUser[id]
		if !ok {
			return nil, ErrInvalidCandidates
		}
		opts = append(opts, models.VotingOption{
			Position:    i,
			Label:       candidateLabel(m),
			CandidateID: utils.Pointer(id),
		})
	}
	return opts, nil
}

// canRunSession allows managers, and the group creator for admin
// elections since a group has no managers before its first election.
func canRunSession(acc *groupAccess, kind string) bool {
	if acc.Caps.CanManage {
		return true
	}
	return kind == lifecycle.SessionAdminElection && acc.Caps.IsCreator && acc.Caps.CanVote
}

func (vc *VotingController) ListSessions(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	acc, err := vc.access(c.UserContext(), groupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanView {
		return respondError(c, ErrNoAccess)
	}

	query := vc.DB.WithContext(c.UserContext()).
		Preload("Options", orderByPosition).
		Where("group_id = ?", groupID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var sessions []models.VotingSession
	if err := query.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

// GetSession returns the session with its live tally and the caller's
// ballot state.
func (vc *VotingController) GetSession(c *fiber.Ctx) error {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session ID")
	}
	userID := currentUserID(c)
	ctx := c.UserContext()

	session, err := vc.loadSession(c, sessionID)
	if err != nil {
		return respondError(c, err)
	}
	acc, err := vc.access(ctx, session.GroupID, userID)
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanView {
		return respondError(c, ErrNoAccess)
	}

	tally, err := utils.LoadSessionTally(vc.DB.WithContext(ctx), session)
	if err != nil {
		return respondError(c, err)
	}

	var userVote *uint
	var vote models.Vote
	err = vc.DB.WithContext(ctx).
		Where("voting_session_id = ? AND user_id = ?", sessionID, userID).
		First(&vote).Error
	switch {
	case err == nil:
		userVote = &vote.OptionID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return respondError(c, err)
	}

	view := lifecycle.SessionView{Status: session.Status, Deadline: session.Deadline}
	return c.JSON(fiber.Map{
		"session":   session,
		"tally":     tally,
		"user_vote": userVote,
		"can_vote":  lifecycle.CanVote(view, time.Now(), userVote != nil, acc.Caps.CanVote),
		"open":      view.Open(time.Now()),
	})
}

type castVoteRequest struct {
	OptionID uint `json:"option_id" validate:"required"`
}

// CastVote records the caller's single ballot. The unique index on
// (voting_session_id, user_id) settles concurrent double submissions.
func (vc *VotingController) CastVote(c *fiber.Ctx) error {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session ID")
	}
	var req castVoteRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	userID := currentUserID(c)
	ctx := c.UserContext()

	session, err := vc.loadSession(c, sessionID)
	if err != nil {
		return respondError(c, err)
	}
	acc, err := vc.access(ctx, session.GroupID, userID)
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanVote {
		return respondError(c, ErrNotMember)
	}
	if !hasOption(session, req.OptionID) {
		return respondError(c, ErrInvalidOption)
	}

	vote := models.Vote{
		VotingSessionID: sessionID,
		UserID:          userID,
		OptionID:        req.OptionID,
	}
	err = vc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		var open int64
		if err := tx.Model(&models.VotingSession{}).
			Where("id = ? AND status = ? AND deadline > ?", sessionID, lifecycle.SessionActive, now).
			Count(&open).Error; err != nil {
			return err
		}
		if open == 0 {
			return ErrVotingClosed
		}
		vote.VotedAt = now
		if err := tx.Create(&vote).Error; err != nil {
			if utils.IsUniqueViolation(err) {
				return ErrAlreadyVoted
			}
			return err
		}
		return nil
	})
	if err != nil {
		return respondError(c, err)
	}

	utils.VotesCast.WithLabelValues(session.Kind).Inc()
	tally, err := utils.LoadSessionTally(vc.DB.WithContext(ctx), session)
	if err != nil {
		return respondError(c, err)
	}
	vc.Hub.Broadcast(sessionID, utils.TallyMessage{Type: "tally", Tally: tally})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Vote recorded",
		"vote":    vote,
		"tally":   tally,
	})
}

// CloseSession ends a session before its deadline and applies the result.
func (vc *VotingController) CloseSession(c *fiber.Ctx) error {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session ID")
	}
	ctx := c.UserContext()

	session, err := vc.loadSession(c, sessionID)
	if err != nil {
		return respondError(c, err)
	}
	acc, err := vc.access(ctx, session.GroupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if !canRunSession(acc, session.Kind) {
		return respondError(c, ErrNotManager)
	}

	closed, tally, err := utils.CloseVotingSession(vc.DB.WithContext(ctx), sessionID, time.Now())
	if err != nil {
		return respondError(c, err)
	}

	utils.SessionsClosed.WithLabelValues("manual").Inc()
	vc.invalidate(ctx, closed.GroupID)
	vc.Hub.Broadcast(sessionID, utils.TallyMessage{Type: "closed", Tally: tally})
	vc.Logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"winner":     closed.WinnerOptionID,
	}).Info("voting session closed")

	return c.JSON(fiber.Map{
		"message": "Voting session closed",
		"session": closed,
		"tally":   tally,
	})
}

func (vc *VotingController) loadSession(c *fiber.Ctx, sessionID uint) (*models.VotingSession, error) {
	var session models.VotingSession
	err := vc.DB.WithContext(c.UserContext()).
		Preload("Options", orderByPosition).
		First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func hasOption(session *models.VotingSession, optionID uint) bool {
	for _, opt := range session.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// distinct keeps the first occurrence of each value.
func distinct(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
