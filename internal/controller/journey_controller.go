package controller

import (
	"context"

	"smart-supermarket/internal/dto"
	"smart-supermarket/internal/identity"
	"smart-supermarket/internal/journey"
	"smart-supermarket/internal/mapper"
	"smart-supermarket/internal/pkg/serverutils"
	"smart-supermarket/internal/recommendation"

	"github.com/gofiber/fiber/v2"
)

// JourneyFlow is the part of *journey.Journey the HTTP surface drives.
type JourneyFlow interface {
	Snapshot() journey.Snapshot
	BeginCapture(ctx context.Context) error
	EndCapture(ctx context.Context)
	Identify(ctx context.Context, intent identity.Intent, name string) (*identity.Result, error)
	Logout(ctx context.Context)
	OpenSurvey(ctx context.Context) (*journey.Survey, error)
	ToggleAisle(name string) (bool, error)
	Selection() []string
	SubmitSurvey(ctx context.Context, count int) (*recommendation.Response, error)
	Recommend(ctx context.Context, count int) (*recommendation.Response, error)
	Recommendations() *recommendation.Response
}

type IJourneyController interface {
	RegisterRoutes(r fiber.Router)
	GetJourney(ctx *fiber.Ctx) error
	GetMoods(ctx *fiber.Ctx) error
	StartCamera(ctx *fiber.Ctx) error
	StopCamera(ctx *fiber.Ctx) error
	Identify(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
	GetSurvey(ctx *fiber.Ctx) error
	ToggleAisle(ctx *fiber.Ctx) error
	SubmitSurvey(ctx *fiber.Ctx) error
	Recommend(ctx *fiber.Ctx) error
	GetRecommendations(ctx *fiber.Ctx) error
}

type journeyController struct {
	journey      JourneyFlow
	mapper       *mapper.JourneyMapper
	defaultCount int
}

func NewJourneyController(j JourneyFlow, defaultCount int) IJourneyController {
	if defaultCount < 1 {
		defaultCount = recommendation.DefaultCount
	}
	return &journeyController{
		journey:      j,
		mapper:       mapper.NewJourneyMapper(),
		defaultCount: defaultCount,
	}
}

func (c *journeyController) RegisterRoutes(r fiber.Router) {
	r.Get("/journey", c.GetJourney)
	r.Get("/moods", c.GetMoods)

	r.Post("/camera/start", c.StartCamera)
	r.Post("/camera/stop", c.StopCamera)

	r.Post("/identify", c.Identify)
	r.Post("/logout", c.Logout)

	s := r.Group("/survey")
	s.Get("/aisles", c.GetSurvey)
	s.Post("/aisles/toggle", c.ToggleAisle)
	s.Post("/submit", c.SubmitSurvey)

	r.Post("/recommendations", c.Recommend)
	r.Get("/recommendations", c.GetRecommendations)
}

func (c *journeyController) GetJourney(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get journey", c.mapper.ToJourneyResponse(c.journey.Snapshot())))
}

func (c *journeyController) GetMoods(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get moods", recommendation.Moods))
}

func (c *journeyController) StartCamera(ctx *fiber.Ctx) error {
	if err := c.journey.BeginCapture(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Camera started", c.mapper.ToJourneyResponse(c.journey.Snapshot())))
}

func (c *journeyController) StopCamera(ctx *fiber.Ctx) error {
	c.journey.EndCapture(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Camera stopped", c.mapper.ToJourneyResponse(c.journey.Snapshot())))
}

func (c *journeyController) Identify(ctx *fiber.Ctx) error {
	var req dto.IdentifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	intent, err := identity.ParseIntent(req.UserType)
	if err != nil {
		return err
	}

	res, err := c.journey.Identify(ctx.UserContext(), intent, req.UserName)
	if err != nil {
		return err
	}

	msg := "Login successful"
	switch {
	case res.Outcome == identity.OutcomeNewAccount && c.journey.Snapshot().Session.IsLoggedIn:
		msg = "Signup successful"
	case res.Outcome == identity.OutcomeNewAccount:
		msg = "Signup successful, please log in"
	}
	return ctx.JSON(serverutils.SuccessResponse(msg, c.mapper.ToIdentifyResponse(res)))
}

func (c *journeyController) Logout(ctx *fiber.Ctx) error {
	c.journey.Logout(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Logged out", c.mapper.ToJourneyResponse(c.journey.Snapshot())))
}

func (c *journeyController) GetSurvey(ctx *fiber.Ctx) error {
	survey, err := c.journey.OpenSurvey(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get aisles", c.mapper.ToSurveyResponse(survey)))
}

func (c *journeyController) ToggleAisle(ctx *fiber.Ctx) error {
	var req dto.ToggleAisleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	selected, err := c.journey.ToggleAisle(req.Aisle)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Selection updated", &dto.ToggleAisleResponse{
		Aisle:     req.Aisle,
		Selected:  selected,
		Selection: c.journey.Selection(),
	}))
}

func (c *journeyController) SubmitSurvey(ctx *fiber.Ctx) error {
	count, err := c.count(ctx)
	if err != nil {
		return err
	}

	res, err := c.journey.SubmitSurvey(ctx.UserContext(), count)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get recommendations", c.mapper.ToRecommendationsResponse(res)))
}

func (c *journeyController) Recommend(ctx *fiber.Ctx) error {
	count, err := c.count(ctx)
	if err != nil {
		return err
	}

	res, err := c.journey.Recommend(ctx.UserContext(), count)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get recommendations", c.mapper.ToRecommendationsResponse(res)))
}

func (c *journeyController) GetRecommendations(ctx *fiber.Ctx) error {
	res := c.journey.Recommendations()
	if res == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(fiber.StatusNotFound, "No recommendations yet"))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get recommendations", c.mapper.ToRecommendationsResponse(res)))
}

// count reads N from the query string or JSON body, defaulting when absent.
func (c *journeyController) count(ctx *fiber.Ctx) (int, error) {
	var req dto.RecommendationRequest
	if err := ctx.QueryParser(&req); err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid query")
	}
	if req.N == nil && len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return 0, err
	}

	if req.N == nil {
		return c.defaultCount, nil
	}
	return *req.N, nil
}
