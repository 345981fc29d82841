package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/user"
)

type bookingApi struct {
	svc      *booking.Service
	users    user.Service
	validate *validator.Validate
}

func registerBookingAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := bookingApi{
		svc:      deps.BookingSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	bg := g.Group("/bookings", jwt)
	bg.POST("", api.create) // students only, checked once the payload is valid
	bg.GET("/my", api.listMine, studentMiddleware())
	bg.GET("/tutor", api.listTutor, tutorMiddleware())

	// detail endpoints
	bg.GET("/:booking_id", api.retrieve)
	bg.POST("/:booking_id/respond", api.respond, tutorMiddleware())
	bg.POST("/:booking_id/complete", api.complete)
}

// Handlers

func (api *bookingApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	var data booking.NewBooking
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if !usr.IsStudent() {
		return errHttpForbidden
	}

	b, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating booking")
	}
	return ctx.JSON(http.StatusCreated, BookingResponse{Message: "Booking created", Booking: b})
}

func (api *bookingApi) respond(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	var data booking.Response
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Response")
	}
	data.Clean()

	b, err := api.svc.Respond(ctx.Request().Context(), usr, ctx.Param("booking_id"), data)
	if err != nil {
		return errors.Wrap(err, "responding to booking")
	}
	return ctx.JSON(http.StatusOK, BookingResponse{Message: "Booking updated", Booking: b})
}

func (api *bookingApi) complete(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	b, err := api.svc.Complete(ctx.Request().Context(), usr, ctx.Param("booking_id"))
	if err != nil {
		return errors.Wrap(err, "completing booking")
	}
	return ctx.JSON(http.StatusOK, BookingResponse{Message: "Booking completed", Booking: b})
}

func (api *bookingApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	detail, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("booking_id"))
	if err != nil {
		return errors.Wrap(err, "retrieving booking")
	}
	return ctx.JSON(http.StatusOK, BookingDetailResponse{Booking: detail})
}

func (api *bookingApi) listMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	bookings, err := api.svc.ListForStudent(ctx.Request().Context(), usr, statusParam(ctx))
	if err != nil {
		return errors.Wrap(err, "listing student bookings")
	}
	return ctx.JSON(http.StatusOK, BookingListResponse{Bookings: bookings})
}

func (api *bookingApi) listTutor(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	bookings, err := api.svc.ListForTutor(ctx.Request().Context(), usr, statusParam(ctx))
	if err != nil {
		return errors.Wrap(err, "listing tutor bookings")
	}
	return ctx.JSON(http.StatusOK, BookingListResponse{Bookings: bookings})
}

func statusParam(ctx echo.Context) string {
	return core.CleanString(ctx.QueryParam("status"))
}

type (
	BookingResponse struct {
		Message string          `json:"message"`
		Booking booking.Booking `json:"booking"`
	}

	BookingDetailResponse struct {
		Booking booking.Detail `json:"booking"`
	}

	BookingListResponse struct {
		Bookings []booking.Detail `json:"bookings"`
	}
)
