package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/feedback"
	"github.com/trezcool/mwalimu/core/user"
)

type feedbackApi struct {
	svc      *feedback.Service
	users    user.Service
	validate *validator.Validate
}

func registerFeedbackAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := feedbackApi{
		svc:      deps.FeedbackSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	fg := g.Group("/feedback", jwt)
	fg.POST("", api.submit, studentMiddleware())
	fg.GET("/outcomes/:student_id", api.studentOutcomes, studentMiddleware())
	fg.GET("/tutor/me", api.tutorReviews, tutorMiddleware())
}

// Handlers

func (api *feedbackApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	var data feedback.NewFeedback
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeedback")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting feedback")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *feedbackApi) studentOutcomes(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	res, err := api.svc.StudentOutcomes(ctx.Request().Context(), usr, ctx.Param("student_id"))
	if err != nil {
		return errors.Wrap(err, "fetching outcomes")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *feedbackApi) tutorReviews(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	res, err := api.svc.TutorReviews(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "fetching tutor feedback")
	}
	return ctx.JSON(http.StatusOK, res)
}
