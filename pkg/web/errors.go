package web

import (
	"errors"

	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/router"
	"github.com/botgrid/botgrid/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func invalidState(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("invalid_state").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps the typed error taxonomy onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsInvalidState(err), errors.Is(err, router.ErrFlowStartDuringHandoff):
		return invalidState(c, err.Error())

	case persistence.IsConversationClosed(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conversation_closed").
			WithDetail("conversation is closed")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsConversationNotFound(err):
		return notFound(c, "conversation not found")

	case persistence.IsRuleNotFound(err):
		return notFound(c, "workflow rule not found")

	case persistence.IsFlowNotFound(err):
		return notFound(c, "flow not found")

	case persistence.IsCampaignNotFound(err):
		return notFound(c, "campaign not found")

	default:
		return internalError(c, err)
	}
}
