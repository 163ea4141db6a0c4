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

type ArbitrationController struct {
	groupStore
	Logger *logrus.Entry
}

func NewArbitrationController(db *gorm.DB, c cache.Cache, ttl time.Duration) *ArbitrationController {
	return &ArbitrationController{
		groupStore: newGroupStore(db, c, ttl),
		Logger:     logrus.WithField("component", "arbitration"),
	}
}

type fileCaseRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"required,max=10000"`
	Priority     string `json:"priority" validate:"omitempty,oneof=low medium high"`
	RespondentID *uint  `json:"respondent_id"`
}

// FileCase opens a dispute. Only active members may file, and only while
// the arbitration section is visible.
func (ac *ArbitrationController) FileCase(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	var req fileCaseRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	userID := currentUserID(c)
	ctx := c.UserContext()
	acc, err := ac.access(ctx, groupID, userID)
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanVote {
		return respondError(c, ErrNotMember)
	}
	if !lifecycle.CanShowComponent(acc.Phase, lifecycle.SectionArbitration) {
		return respondError(c, ErrSectionClosed)
	}
	if req.RespondentID != nil {
		if *req.RespondentID == userID {
			return badRequest(c, "You cannot file a case against yourself")
		}
		respondent, err := ac.loadMember(ctx, groupID, *req.RespondentID)
		if err != nil {
			return respondError(c, err)
		}
		if respondent == nil {
			return badRequest(c, "respondent must be a member of the group")
		}
	}
	if req.Priority == "" {
		req.Priority = "medium"
	}

	item := models.ArbitrationCase{
		GroupID:      groupID,
		FiledBy:      userID,
		RespondentID: req.RespondentID,
		Title:        utils.SanitizeText(req.Title),
		Description:  utils.SanitizeText(req.Description),
		Status:       models.CaseOpen,
		Priority:     req.Priority,
	}
	if item.Title == "" || item.Description == "" {
		return badRequest(c, "title and description are required")
	}
	if err := ac.DB.WithContext(ctx).Create(&item).Error; err != nil {
		return respondError(c, err)
	}

	utils.LogEvent("arbitration_case_filed", map[string]interface{}{
		"group_id": groupID,
		"case_id":  item.ID,
		"priority": item.Priority,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Case filed",
		"case":    item,
	})
}

func (ac *ArbitrationController) ListCases(c *fiber.Ctx) error {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid group ID")
	}
	acc, err := ac.access(c.UserContext(), groupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.IsMember {
		return respondError(c, ErrNotMember)
	}

	query := ac.DB.WithContext(c.UserContext()).Where("group_id = ?", groupID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	var cases []models.ArbitrationCase
	if err := query.Order("created_at DESC").Find(&cases).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"cases": cases})
}

func (ac *ArbitrationController) GetCase(c *fiber.Ctx) error {
	item, acc, err := ac.loadCase(c)
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.IsMember {
		return respondError(c, ErrNotMember)
	}
	return c.JSON(fiber.Map{"case": item})
}

type assignCaseRequest struct {
	AssigneeID uint `json:"assignee_id" validate:"required"`
}

// AssignCase hands a case to a member. An open case moves to review.
func (ac *ArbitrationController) AssignCase(c *fiber.Ctx) error {
	var req assignCaseRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	item, acc, err := ac.loadCase(c)
	if err != nil {
		return respondError(c, err)
	}
	if !acc.Caps.CanManage {
		return respondError(c, ErrNotManager)
	}
	if item.Status == models.CaseResolved || item.Status == models.CaseDismissed {
		return respondError(c, ErrCaseTransition)
	}

	assignee, err := ac.loadMember(c.UserContext(), item.GroupID, req.AssigneeID)
	if err != nil {
		return respondError(c, err)
	}
	if assignee == nil || assignee.Status != lifecycle.MemberActive {
		return badRequest(c, "assignee must be an active member of the group")
	}

	updates := map[string]interface{}{"assigned_to": req.AssigneeID}
	if item.Status == models.CaseOpen {
		updates["status"] = models.CaseUnderReview
	}
	if err := ac.DB.WithContext(c.UserContext()).Model(item).Updates(updates).Error; err != nil {
		return respondError(c, err)
	}

	ac.Logger.WithFields(logrus.Fields{"case_id": item.ID, "assignee": req.AssigneeID}).Info("case assigned")
	return c.JSON(fiber.Map{"message": "Case assigned", "case": item})
}

type updateCaseStatusRequest struct {
	Status     string `json:"status" validate:"required,oneof=under_review resolved dismissed"`
	Resolution string `json:"resolution" validate:"max=10000"`
}

// UpdateCaseStatus moves a case forward. Managers and the assignee may
// do so; statuses never go back.
func (ac *ArbitrationController) UpdateCaseStatus(c *fiber.Ctx) error {
	var req updateCaseStatusRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	item, acc, err := ac.loadCase(c)
	if err != nil {
		return respondError(c, err)
	}
	userID := currentUserID(c)
	isAssignee := item.AssignedTo != nil && *item.AssignedTo == userID && acc.Caps.CanVote
	if !acc.Caps.CanManage && !isAssignee {
		return respondError(c, ErrNotManager)
	}
	if !item.CanMoveTo(req.Status) {
		return respondError(c, ErrCaseTransition)
	}

	from := item.Status
	updates := map[string]interface{}{"status": req.Status}
	if req.Resolution != "" {
		updates["resolution"] = utils.SanitizeText(req.Resolution)
	}
	if req.Status == models.CaseResolved || req.Status == models.CaseDismissed {
		updates["resolved_at"] = time.Now()
	}

	res := ac.DB.WithContext(c.UserContext()).Model(&models.ArbitrationCase{}).
		Where("id = ? AND status = ?", item.ID, from).
		Updates(updates)
	if res.Error != nil {
		return respondError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return respondError(c, ErrCaseTransition)
	}
	if err := ac.DB.WithContext(c.UserContext()).First(item, item.ID).Error; err != nil {
		return respondError(c, err)
	}

	utils.LogEvent("arbitration_case_status", map[string]interface{}{
		"case_id": item.ID,
		"from":    from,
		"to":      req.Status,
		"actor":   userID,
	})
	return c.JSON(fiber.Map{"message": "Case updated", "case": item})
}

func (ac *ArbitrationController) loadCase(c *fiber.Ctx) (*models.ArbitrationCase, *groupAccess, error) {
	caseID, ok := parseIDParam(c, "caseId")
	if !ok {
		return nil, nil, ErrCaseNotFound
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return nil, nil, ErrGroupNotFound
	}

	var item models.ArbitrationCase
	err := ac.DB.WithContext(c.UserContext()).
		Where("id = ? AND group_id = ?", caseID, groupID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	acc, err := ac.access(c.UserContext(), groupID, currentUserID(c))
	if err != nil {
		return nil, nil, err
	}
	return &item, acc, nil
}
