package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

type tutorApi struct {
	svc      *tutor.Service
	users    user.Service
	validate *validator.Validate
}

func registerTutorAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := tutorApi{
		svc:      deps.TutorSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	tg := g.Group("/tutors")

	// public endpoints
	tg.POST("/search", api.search)
	tg.GET("", api.list)
	tg.GET("/:tutor_id", api.retrieve)

	// tutor endpoints
	tg.POST("/me/availability", api.addAvailability, jwt, tutorMiddleware())
}

// Handlers

func (api *tutorApi) search(ctx echo.Context) error {
	var data tutor.SearchRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SearchRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Search(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "searching tutors")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *tutorApi) list(ctx echo.Context) error {
	tutors, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing tutors")
	}
	return ctx.JSON(http.StatusOK, TutorListResponse{Tutors: tutors, Total: len(tutors)})
}

func (api *tutorApi) retrieve(ctx echo.Context) error {
	detail, err := api.svc.Detail(ctx.Request().Context(), ctx.Param("tutor_id"))
	if err != nil {
		return errors.Wrap(err, "finding tutor by ID")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *tutorApi) addAvailability(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	var data tutor.NewSlots
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSlots")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	detail, err := api.svc.AddAvailability(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding availability")
	}
	return ctx.JSON(http.StatusOK, detail)
}

type TutorListResponse struct {
	Tutors []tutor.ListItem `json:"tutors"`
	Total  int              `json:"total"`
}
