package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/chat"
	"github.com/trezcool/mwalimu/core/user"
)

type chatApi struct {
	svc   *chat.Service
	users user.Service
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := chatApi{svc: deps.ChatSvc, users: deps.UserSvc}

	cg := g.Group("/chat/bookings/:booking_id", jwt)
	cg.GET("/messages", api.history)
	cg.POST("/messages", api.send)
}

// Handlers

func (api *chatApi) history(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	msgs, err := api.svc.History(ctx.Request().Context(), usr, ctx.Param("booking_id"))
	if err != nil {
		return errors.Wrap(err, "fetching messages")
	}
	return ctx.JSON(http.StatusOK, MessagesResponse{Messages: msgs})
}

func (api *chatApi) send(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	var data chat.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}

	msg, err := api.svc.Send(ctx.Request().Context(), usr, ctx.Param("booking_id"), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, MessageCreatedResponse{Message: msg})
}

type (
	MessagesResponse struct {
		Messages []chat.Message `json:"messages"`
	}

	MessageCreatedResponse struct {
		Message chat.Message `json:"message"`
	}
)
