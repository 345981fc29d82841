package echoapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
	realtimesvc "github.com/trezcool/mwalimu/services/realtime"
)

type socketApi struct {
	conf     *core.Config
	users    user.Service
	hub      *realtimesvc.Hub
	handler  realtimesvc.EventHandler
	upgrader websocket.Upgrader
}

func registerSocketAPI(e *echo.Echo, deps ServerDeps) {
	if deps.Hub == nil {
		return
	}
	api := socketApi{
		conf:    deps.Conf,
		users:   deps.UserSvc,
		hub:     deps.Hub,
		handler: deps.BookingEvents,
	}
	api.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     api.checkOrigin,
	}

	e.GET("/ws", api.connect)
}

func (api *socketApi) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range api.conf.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Handlers

// connect authenticates the handshake with a JWT passed either as the `token` query param
// or as a Bearer Authorization header, then hands the connection over to the Hub.
func (api *socketApi) connect(ctx echo.Context) error {
	raw := ctx.QueryParam("token")
	if raw == "" {
		raw = bearerToken(ctx.Request().Header.Get(echo.HeaderAuthorization))
	}
	if raw == "" {
		return errUnauthorized
	}

	claims, err := parseToken(api.conf, raw)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users, *claims)
	if err != nil {
		return err
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied to the client
		return nil
	}
	api.hub.Serve(ctx.Request().Context(), conn, usr, api.handler)
	return nil
}
