package controller

import (
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

// adminElectionWindow is how long the automatic admin election stays open.
const adminElectionWindow = 72 * time.Hour

type GroupController struct {
	groupStore
	Logger *logrus.Entry
}

func NewGroupController(db *gorm.DB, c cache.Cache, ttl time.Duration) *GroupController {
	return &GroupController{
		groupStore: newGroupStore(db, c, ttl),
		Logger:     logrus.WithField("component", "groups"),
	}
}

type createGroupRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Type        string `json:"type" validate:"required,oneof=buying investment company_formation freelance"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private"`
	MinMembers  int    `json:"min_members" validate:"required,min=2"`
	MaxMembers  int    `json:"max_members" validate:"required,gtefield=MinMembers,max=10000"`
}

// CreateGroup opens a group in the initial phase with the caller as its
// first member.
func (gc *GroupController) CreateGroup(c *fiber.Ctx) error {
	user := currentUser(c)

	var req createGroupRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	req.Name = utils.SanitizeText(req.Name)
	req.Description = utils.SanitizeText(req.Description)
	if req.Name == "" {
		return badRequest(c, "name is required")
	}
	if req.Visibility == "" {
		req.Visibility = lifecycle.VisibilityPublic
	}

	group := models.Group{
		Name:         req.Name,
		Description:  req.Description,
		Type:         req.Type,
		Status:       models.GroupStatusActive,
		Visibility:   req.Visibility,
		CurrentPhase: string(lifecycle.PhaseInitial),
		MinMembers:   req.MinMembers,
		MaxMembers:   req.MaxMembers,
		MemberCount:  1,
		CreatorID:    user.ID,
	}

	err := gc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		return tx.Create(&models.GroupMember{
			GroupID:  group.ID,
			UserID:   user.ID,
			Role:     lifecycle.RoleMember,
			Status:   lifecycle.MemberActive,
			JoinedAt: time.Now(),
		}).Error
	})
	if err != nil {
		return respondError(c, err)
	}

	gc.Logger.WithFields(logrus.Fields{"group_id": group.ID, "user_id": user.ID}).Info("group created")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Group created successfully",
		"group":   group,
	})
}

// ListGroups returns public groups and the caller's own groups.
func (gc *GroupController) ListGroups(c *fiber.Ctx) error {
	userID := currentUserID(c)
	page, limit, offset := utils.ParsePagination(c)

	query := gc.DB.WithContext(c.UserContext()).Model(&models.Group{}).
		Where("visibility = ? OR id IN (?)", lifecycle.VisibilityPublic,
			gc.DB.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID))

	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}
	if p := c.Query("phase"); p != "" {
		query = query.Where("current_phase = ?", p)
	}
	if c.QueryBool("mine") {
		query = query.Where("id IN (?)",
			gc.DB.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err)
	}
	var groups []models.Group
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&groups).Error; err != nil {
		return respondError(c, err)
	}

	return c.JSON(utils.PaginatedResponse{Data: groups, Total: total, Page: page, Limit: limit})
}

func (gc *GroupController) GetGroup(c *fiber.Ctx) error {
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
	return c.JSON(fiber.Map{
		"group":        acc.Group,
		"capabilities": acc.Caps,
	})
}

// JoinGroup adds the caller as a member. The seat is claimed with a
// conditional increment so concurrent joins can never exceed max_members.
func (gc *GroupController) JoinGroup(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	user := currentUser(c)
	ctx := c.UserContext()

	var member models.GroupMember
	err := gc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, user.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyMember
		}

		var invite *models.GroupInvite
		if group.Visibility == lifecycle.VisibilityPrivate {
			var inv models.GroupInvite
			err := tx.Where("group_id = ? AND invitee_id = ? AND status = ?", groupID, user.ID, models.InvitePending).
				First(&inv).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInviteRequired
			}
			if err != nil {
				return err
			}
			invite = &inv
		}

		res := tx.Model(&models.Group{}).
			Where("id = ? AND member_count < max_members AND current_phase IN ?",
				groupID, phaseStrings(lifecycle.PhasesShowing(lifecycle.SectionJoin))).
			Update("member_count", gorm.Expr("member_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.First(&group, groupID).Error; err != nil {
				return err
			}
			phase, _ := lifecycle.ParsePhase(group.CurrentPhase)
			if !lifecycle.CanShowComponent(phase, lifecycle.SectionJoin) {
				return ErrJoinClosed
			}
			return ErrGroupFull
		}

		member = models.GroupMember{
			GroupID:  groupID,
			UserID:   user.ID,
			Role:     lifecycle.RoleMember,
			Status:   lifecycle.MemberActive,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(&member).Error; err != nil {
			if utils.IsUniqueViolation(err) {
				return ErrAlreadyMember
			}
			return err
		}

		if invite != nil {
			return tx.Model(invite).Update("status", models.InviteAccepted).Error
		}
		return nil
	})
	if err != nil {
		utils.GroupJoins.WithLabelValues(joinOutcome(err)).Inc()
		return respondError(c, err)
	}

	utils.GroupJoins.WithLabelValues("joined").Inc()
	gc.invalidate(ctx, groupID)
	gc.Logger.WithFields(logrus.Fields{"group_id": groupID, "user_id": user.ID}).Info("member joined")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Joined group successfully",
		"member":  member,
	})
}

func joinOutcome(err error) string {
	switch {
	case errors.Is(err, ErrGroupFull):
		return "full"
	case errors.Is(err, ErrAlreadyMember):
		return "duplicate"
	case errors.Is(err, ErrJoinClosed), errors.Is(err, ErrInviteRequired):
		return "rejected"
	default:
		return "error"
	}
}

func (gc *GroupController) LeaveGroup(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	userID := currentUserID(c)
	ctx := c.UserContext()

	acc, err := gc.access(ctx, groupID, userID)
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.IsMember {
		return respondError(c, ErrNotMember)
	}
	if !acc.Caps.CanLeave {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You cannot leave this group in its current phase",
		})
	}

	err = gc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// an absent winner could not be promoted
		var candidacies int64
		if err := tx.Model(&models.VotingOption{}).
			Joins("JOIN voting_sessions ON voting_sessions.id = voting_options.voting_session_id").
			Where("voting_sessions.group_id = ? AND voting_sessions.kind = ? AND voting_sessions.status = ? AND voting_sessions.deleted_at IS NULL",
				groupID, lifecycle.SessionAdminElection, lifecycle.SessionActive).
			Where("voting_options.candidate_id = ?", userID).
			Count(&candidacies).Error; err != nil {
			return err
		}
		if candidacies > 0 {
			return ErrOpenCandidacy
		}

		res := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotMember
		}
		return tx.Model(&models.Group{}).
			Where("id = ? AND member_count > 0", groupID).
			Update("member_count", gorm.Expr("member_count - 1")).Error
	})
	if err != nil {
		return respondError(c, err)
	}

	gc.invalidate(ctx, groupID)
	return c.JSON(fiber.Map{"message": "Left group successfully"})
}

type advancePhaseRequest struct {
	From string `json:"from" validate:"required,phase"`
}

// AdvancePhase moves the group one step forward. The caller names the
// phase it observed; a group that moved on since then yields 409.
func (gc *GroupController) AdvancePhase(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	var req advancePhaseRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	user := currentUser(c)
	ctx := c.UserContext()
	acc, err := gc.access(ctx, groupID, user.ID)
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanAdvancePhase {
		return respondError(c, ErrNotManager)
	}

	from := lifecycle.Phase(req.From)
	to, err := from.Next()
	if err != nil {
		return respondError(c, err)
	}

	var election *models.VotingSession
	err = gc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkPhaseRequirements(tx, groupID, from); err != nil {
			return err
		}

		updates := map[string]interface{}{"current_phase": string(to)}
		if to == lifecycle.PhaseClosed {
			updates["status"] = models.GroupStatusClosed
		}
		res := tx.Model(&models.Group{}).
			Where("id = ? AND current_phase = ?", groupID, string(from)).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPhaseConflict
		}

		if err := tx.Create(&models.PhaseTransition{
			GroupID:   groupID,
			FromPhase: string(from),
			ToPhase:   string(to),
			ActorID:   &user.ID,
		}).Error; err != nil {
			return err
		}

		if to == lifecycle.PhaseVoteAdmins {
			election, err = openAdminElection(tx, groupID, user.ID, time.Now())
			return err
		}
		return nil
	})
	if err != nil {
		return respondError(c, err)
	}

	utils.PhaseTransitions.WithLabelValues(string(to)).Inc()
	gc.invalidate(ctx, groupID)
	utils.LogEvent("phase_advanced", map[string]interface{}{
		"group_id": groupID,
		"from":     from,
		"to":       to,
		"actor_id": user.ID,
	})

	resp := fiber.Map{
		"message":  "Phase advanced",
		"from":     from,
		"phase":    to,
		"label":    lifecycle.Label(to, requestLanguage(c)),
		"progress": lifecycle.Progress(to),
	}
	if election != nil {
		resp["election_session_id"] = election.ID
	}
	return c.JSON(resp)
}

// checkPhaseRequirements enforces the exit conditions of from.
func checkPhaseRequirements(tx *gorm.DB, groupID uint, from lifecycle.Phase) error {
	switch from {
	case lifecycle.PhasePendingMembers:
		var group models.Group
		if err := tx.Select("member_count", "min_members").First(&group, groupID).Error; err != nil {
			return err
		}
		if group.MemberCount < group.MinMembers {
			return ErrPhaseRequirement
		}
	case lifecycle.PhaseVoteAdmins:
		var admins int64
		if err := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND role = ? AND status = ?", groupID, lifecycle.RoleAdmin, lifecycle.MemberActive).
			Count(&admins).Error; err != nil {
			return err
		}
		if admins == 0 {
			return ErrPhaseRequirement
		}
	}
	return nil
}

// openAdminElection starts the election with every active member as a
// candidate, ordered by join time.
func openAdminElection(tx *gorm.DB, groupID, creatorID uint, now time.Time) (*models.VotingSession, error) {
	var members []models.GroupMember
	if err := tx.Preload("User").
		Where("group_id = ? AND status = ?", groupID, lifecycle.MemberActive).
		Order("joined_at ASC, id ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}

	session := models.VotingSession{
		GroupID:   groupID,
		Title:     "Admin election",
		Kind:      lifecycle.SessionAdminElection,
		Status:    lifecycle.SessionActive,
		Deadline:  now.Add(adminElectionWindow),
		CreatedBy: creatorID,
	}
	for i, m := range members {
		session.Options = append(session.Options, models.VotingOption{
			Position:    i,
			Label:       candidateLabel(m),
			CandidateID: utils.Pointer(m.UserID),
		})
	}
	if err := tx.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func candidateLabel(m models.GroupMember) string {
	if m.User != nil && m.User.Name != "" {
		return m.User.Name
	}
	if m.User != nil {
		return m.User.Email
	}
	return "Member " + utils.FormatID(m.UserID)
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=member moderator admin"`
}

func (gc *GroupController) UpdateMemberRole(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	targetID, ok := parseIDParam(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	var req updateRoleRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	userID := currentUserID(c)
	ctx := c.UserContext()
	acc, err := gc.access(ctx, groupID, userID)
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanManage {
		return respondError(c, ErrNotManager)
	}
	if targetID == userID {
		return badRequest(c, "You cannot change your own role")
	}

	res := gc.DB.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, targetID).
		Updates(map[string]interface{}{"role": req.Role, "updated_at": time.Now()})
	if res.Error != nil {
		return respondError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
	}

	gc.invalidate(ctx, groupID)
	gc.Logger.WithFields(logrus.Fields{
		"group_id": groupID,
		"target":   targetID,
		"role":     req.Role,
		"actor_id": userID,
	}).Info("member role changed")
	return c.JSON(fiber.Map{"message": "Role updated", "role": req.Role})
}

func (gc *GroupController) ListMembers(c *fiber.Ctx) error {
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

	var members []models.GroupMember
	if err := gc.DB.WithContext(c.UserContext()).
		Preload("User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "country", "role")
		}).
		Where("group_id = ?", groupID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"members": members, "total": len(members)})
}

type createInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CreateInvite invites a registered user by email.
func (gc *GroupController) CreateInvite(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	var req createInviteRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	userID := currentUserID(c)
	ctx := c.UserContext()
	acc, err := gc.access(ctx, groupID, userID)
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanInvite {
		return respondError(c, ErrSectionClosed)
	}

	var invitee models.User
	if err := gc.DB.WithContext(ctx).Where("email = ?", req.Email).First(&invitee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, ErrUserNotFound)
		}
		return respondError(c, err)
	}
	if member, err := gc.loadMember(ctx, groupID, invitee.ID); err != nil {
		return respondError(c, err)
	} else if member != nil {
		return respondError(c, ErrAlreadyMember)
	}

	invite := models.GroupInvite{
		GroupID:   groupID,
		InviteeID: invitee.ID,
		InviterID: userID,
		Status:    models.InvitePending,
	}
	if err := gc.DB.WithContext(ctx).Create(&invite).Error; err != nil {
		if utils.IsUniqueViolation(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "User already invited"})
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Invitation sent",
		"invite":  invite,
	})
}

// ListMyInvites lists pending invitations addressed to the caller.
func (gc *GroupController) ListMyInvites(c *fiber.Ctx) error {
	var invites []models.GroupInvite
	if err := gc.DB.WithContext(c.UserContext()).
		Preload("Group").
		Where("invitee_id = ? AND status = ?", currentUserID(c), models.InvitePending).
		Order("created_at DESC").
		Find(&invites).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"invites": invites})
}

func phaseStrings(phases []lifecycle.Phase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}
