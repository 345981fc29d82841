package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/stats"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

type adminApi struct {
	users    user.Service
	tutors   *tutor.Service
	students *student.Service
	bookings *booking.Service
	stats    *stats.Service
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{
		users:    deps.UserSvc,
		tutors:   deps.TutorSvc,
		students: deps.StudentSvc,
		bookings: deps.BookingSvc,
		stats:    deps.StatsSvc,
	}

	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.GET("/users", api.queryUsers)
	ag.DELETE("/users/:user_id", api.destroyUser)
	ag.GET("/roles", api.queryRoles)
	ag.GET("/bookings", api.queryBookings)
	ag.GET("/overview", api.overview)
	ag.GET("/stats", api.bookingStats)
	ag.GET("/tutors", api.topTutors)
	ag.GET("/subjects", api.subjectTrends)
	ag.GET("/alerts", api.alerts)
}

// Handlers

func (api *adminApi) queryUsers(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, UserListResponse{Users: []user.User{}})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.users.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, UserListResponse{Users: users})
}

func (api *adminApi) destroyUser(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	usr, err := api.users.GetByID(rctx, ctx.Param("user_id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	// Say No to Suicide! ctxUser cannot delete themselves
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	switch usr.Role {
	case user.RoleTutor:
		if err = api.tutors.DeleteByUserID(rctx, usr.ID); err != nil {
			return errors.Wrap(err, "deleting tutor profile")
		}
	case user.RoleStudent:
		if err = api.students.DeleteByUserID(rctx, usr.ID); err != nil {
			return errors.Wrap(err, "deleting student profile")
		}
	}
	if err = api.users.Delete(rctx, usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "User deleted"})
}

func (api *adminApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *adminApi) queryBookings(ctx echo.Context) error {
	bookings, err := api.bookings.ListAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing bookings")
	}
	return ctx.JSON(http.StatusOK, BookingListResponse{Bookings: bookings})
}

func (api *adminApi) overview(ctx echo.Context) error {
	res, err := api.stats.Overview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing overview")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) bookingStats(ctx echo.Context) error {
	days := stats.DefaultPeriodDays
	if val := strings.TrimSpace(ctx.QueryParam("days")); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return stats.ErrInvalidPeriod
		}
		days = n
	}

	res, err := api.stats.BookingStats(ctx.Request().Context(), days)
	if err != nil {
		return errors.Wrap(err, "computing booking stats")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) topTutors(ctx echo.Context) error {
	res, err := api.stats.TopTutors(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "ranking tutors")
	}
	return ctx.JSON(http.StatusOK, TopTutorsResponse{TopTutors: res})
}

func (api *adminApi) subjectTrends(ctx echo.Context) error {
	res, err := api.stats.SubjectTrends(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing subject trends")
	}
	return ctx.JSON(http.StatusOK, SubjectTrendsResponse{SubjectTrends: res})
}

func (api *adminApi) alerts(ctx echo.Context) error {
	res, err := api.stats.Alerts(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing alerts")
	}
	return ctx.JSON(http.StatusOK, res)
}

type (
	UserListResponse struct {
		Users []user.User `json:"users"`
	}

	TopTutorsResponse struct {
		TopTutors []stats.TutorEffectiveness `json:"top_tutors"`
	}

	SubjectTrendsResponse struct {
		SubjectTrends []stats.SubjectTrend `json:"subject_trends"`
	}
)
