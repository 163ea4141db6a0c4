package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gpodo/lifecycle"
	"gpodo/utils"
)

var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrNoAccess           = errors.New("you do not have access to this group")
	ErrNotManager         = errors.New("only group admins or moderators can do this")
	ErrNotMember          = errors.New("you are not a member of this group")
	ErrAlreadyMember      = errors.New("already a member of this group")
	ErrGroupFull          = errors.New("group has reached its member limit")
	ErrJoinClosed         = errors.New("group is no longer accepting members")
	ErrInviteRequired     = errors.New("an invitation is required to join this group")
	ErrPhaseConflict      = errors.New("group phase changed, reload and try again")
	ErrPhaseRequirement   = errors.New("the current phase requirements are not met")
	ErrSectionClosed      = errors.New("this section is not available in the current phase")
	ErrSessionNotFound    = errors.New("voting session not found")
	ErrVotingClosed       = errors.New("voting session has ended")
	ErrAlreadyVoted       = errors.New("you have already voted in this session")
	ErrInvalidOption      = errors.New("option does not belong to this session")
	ErrInvalidCandidates  = errors.New("at least two distinct candidates who are active members are required")
	ErrServiceNotFound    = errors.New("service not found")
	ErrOwnService         = errors.New("you cannot purchase your own service")
	ErrInsufficientPoints = utils.ErrInsufficientPoints
	ErrCaseNotFound       = errors.New("arbitration case not found")
	ErrCaseTransition     = errors.New("case cannot move to that status")
	ErrUserNotFound       = errors.New("user not found")
	ErrOpenCandidacy      = errors.New("you are a candidate in an open admin election")
)

// respondError maps domain errors onto HTTP statuses. Anything unknown is
// reported to Sentry and hidden behind a 500.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrServiceNotFound),
		errors.Is(err, ErrCaseNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, ErrNoAccess),
		errors.Is(err, ErrNotManager),
		errors.Is(err, ErrNotMember),
		errors.Is(err, ErrInviteRequired),
		errors.Is(err, ErrSectionClosed):
		status = fiber.StatusForbidden
	case errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrGroupFull),
		errors.Is(err, ErrJoinClosed),
		errors.Is(err, ErrPhaseConflict),
		errors.Is(err, ErrVotingClosed),
		errors.Is(err, ErrAlreadyVoted),
		errors.Is(err, ErrCaseTransition),
		errors.Is(err, ErrOpenCandidacy),
		errors.Is(err, utils.ErrSessionNotActive),
		errors.Is(err, lifecycle.ErrNoNextPhase):
		status = fiber.StatusConflict
	case errors.Is(err, ErrPhaseRequirement),
		errors.Is(err, lifecycle.ErrUnknownPhase):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidOption),
		errors.Is(err, ErrInvalidCandidates),
		errors.Is(err, ErrOwnService):
		status = fiber.StatusBadRequest
	case errors.Is(err, ErrInsufficientPoints):
		status = fiber.StatusPaymentRequired
	}

	if status == fiber.StatusInternalServerError {
		utils.LogError("internal_error", err, map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
		return c.Status(status).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(status).JSON(fiber.Map{"error": "Not found"})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
