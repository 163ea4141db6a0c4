package controller

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"gpodo/cache"
	"gpodo/lifecycle"
	"gpodo/models"
	"gpodo/utils"
)

// GetPhaseContext returns everything a client needs to render a group
// page: localized phase label, progress, capabilities and which sections
// are visible. An unknown stored phase renders as "Unknown Phase" with
// nothing visible rather than failing the request.
func (gc *GroupController) GetPhaseContext(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	acc, err := gc.access(c.UserContext(), groupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanView {
		return respondError(c, ErrNoAccess)
	}

	lang := requestLanguage(c)
	sections := lifecycle.SectionVisibility(acc.Phase)

	resp := fiber.Map{
		"group_id":     acc.Group.ID,
		"name":         acc.Group.Name,
		"type":         acc.Group.Type,
		"phase":        acc.Phase,
		"phase_known":  acc.Phase.Known(),
		"label":        lifecycle.Label(acc.Phase, lang),
		"progress":     lifecycle.Progress(acc.Phase),
		"member_count": acc.Group.MemberCount,
		"min_members":  acc.Group.MinMembers,
		"max_members":  acc.Group.MaxMembers,
		"capabilities": acc.Caps,
		"sections":     sections,
		"language":     lang,
	}
	if acc.PhaseErr != nil {
		resp["phase_error"] = acc.PhaseErr.Error()
		resp["stored_phase"] = acc.Group.CurrentPhase
	}
	return c.JSON(resp)
}

// GetPipeline renders the six step phase pipeline with measured
// progress for the active step.
func (gc *GroupController) GetPipeline(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	ctx := c.UserContext()
	acc, err := gc.access(ctx, groupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanView {
		return respondError(c, ErrNoAccess)
	}

	metrics, err := gc.pipelineMetrics(ctx, acc.Group)
	if err != nil {
		return respondError(c, err)
	}

	lang := requestLanguage(c)
	return c.JSON(fiber.Map{
		"group_id": acc.Group.ID,
		"phase":    acc.Phase,
		"label":    lifecycle.Label(acc.Phase, lang),
		"steps":    lifecycle.Pipeline(acc.Phase, lang, metrics),
	})
}

func (gc *GroupController) pipelineMetrics(ctx context.Context, group *models.Group) (lifecycle.PipelineMetrics, error) {
	var m lifecycle.PipelineMetrics
	key := cache.GroupPipelineKey(group.ID)
	if found, err := gc.Cache.GetJSON(ctx, key, &m); err == nil && found {
		return m, nil
	}

	m.TotalFields = 5
	for _, filled := range []bool{
		group.Name != "",
		group.Description != "",
		group.Type != "",
		group.MinMembers > 0,
		group.MaxMembers > 0,
	} {
		if filled {
			m.FilledFields++
		}
	}
	m.MemberCount = group.MemberCount
	m.MinMembers = group.MinMembers

	db := gc.DB.WithContext(ctx)
	var admins int64
	if err := db.Model(&models.GroupMember{}).
		Where("group_id = ? AND role = ? AND status = ?", group.ID, lifecycle.RoleAdmin, lifecycle.MemberActive).
		Count(&admins).Error; err != nil {
		return m, err
	}
	m.Admins = int(admins)

	var sessions []struct {
		Status string
		Total  int
	}
	if err := db.Model(&models.VotingSession{}).
		Select("status, COUNT(*) AS total").
		Where("group_id = ?", group.ID).
		Group("status").
		Scan(&sessions).Error; err != nil {
		return m, err
	}
	for _, s := range sessions {
		m.TotalSessions += s.Total
		if s.Status == lifecycle.SessionClosed {
			m.ClosedSessions += s.Total
		}
	}

	if err := gc.Cache.SetJSON(ctx, key, m, gc.TTL); err != nil {
		utils.LogError("pipeline_cache_set", err, map[string]interface{}{"group_id": group.ID})
	}
	return m, nil
}
