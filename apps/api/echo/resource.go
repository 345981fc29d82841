package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/resource"
	"github.com/trezcool/mwalimu/core/user"
)

type resourceApi struct {
	svc      *resource.Service
	users    user.Service
	validate *validator.Validate
}

func registerResourceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := resourceApi{
		svc:      deps.ResourceSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	rg := g.Group("/resources")
	rg.GET("", api.list)
	rg.POST("", api.share, jwt, tutorMiddleware())
	rg.DELETE("/:id", api.destroy, jwt, tutorMiddleware())
}

// Handlers

func (api *resourceApi) list(ctx echo.Context) error {
	resources, err := api.svc.List(ctx.Request().Context(), ctx.QueryParam("subject"))
	if err != nil {
		return errors.Wrap(err, "listing resources")
	}
	return ctx.JSON(http.StatusOK, ResourceListResponse{Resources: resources})
}

func (api *resourceApi) share(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	var data resource.NewResource
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Share(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "sharing resource")
	}
	return ctx.JSON(http.StatusCreated, ResourceResponse{Message: "Resource shared successfully", Resource: r})
}

func (api *resourceApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Resource deleted successfully"})
}

type (
	ResourceListResponse struct {
		Resources []resource.Resource `json:"resources"`
	}

	ResourceResponse struct {
		Message  string            `json:"message"`
		Resource resource.Resource `json:"resource"`
	}
)
