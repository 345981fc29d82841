package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/stats"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/user"
)

type statsApi struct {
	svc      *stats.Service
	students *student.Service
	users    user.Service
}

func registerStatsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := statsApi{
		svc:      deps.StatsSvc,
		students: deps.StudentSvc,
		users:    deps.UserSvc,
	}

	sg := g.Group("/stats", jwt)
	sg.POST("/streak", api.updateStreak, studentMiddleware())
	sg.GET("/student", api.student, studentMiddleware())
	sg.GET("/tutor", api.tutor, tutorMiddleware())
	sg.GET("/admin", api.admin, adminMiddleware())
}

// Handlers

func (api *statsApi) updateStreak(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	res, err := api.students.RecordAction(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "recording student action")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *statsApi) student(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	res, err := api.svc.StudentDashboard(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing student stats")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *statsApi) tutor(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	res, err := api.svc.TutorDashboard(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing tutor stats")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *statsApi) admin(ctx echo.Context) error {
	res, err := api.svc.AdminDashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing admin stats")
	}
	return ctx.JSON(http.StatusOK, res)
}
