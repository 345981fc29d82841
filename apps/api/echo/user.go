package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

type authApi struct {
	conf     *core.Config
	logger   core.Logger
	svc      user.Service
	tutors   *tutor.Service
	students *student.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, limiter *ipRateLimiter, deps ServerDeps) {
	api := authApi{
		conf:     deps.Conf,
		logger:   deps.Logger,
		svc:      deps.UserSvc,
		tutors:   deps.TutorSvc,
		students: deps.StudentSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register)
	ag.POST("/login", api.login, limiter.middleware())
	ag.POST("/password-reset", api.resetPassword, limiter.middleware())
	ag.POST("/password-reset-confirm", api.confirmPasswordReset, limiter.middleware())

	// authed endpoints
	ag.GET("/me", api.me, jwt)
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

// Handlers

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	usr, err := api.svc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}

	var tutorID string
	switch usr.Role {
	case user.RoleTutor:
		t, err := api.tutors.CreateProfile(rctx, tutor.NewTutor{
			UserID:     usr.ID,
			Name:       usr.Name,
			Subject:    data.Subject,
			Experience: data.Experience,
		})
		if err != nil {
			api.rollback(ctx, usr)
			return errors.Wrap(err, "creating tutor profile")
		}
		tutorID = t.ID
	case user.RoleStudent:
		if _, err := api.students.CreateProfile(rctx, usr.ID); err != nil {
			api.rollback(ctx, usr)
			return errors.Wrap(err, "creating student profile")
		}
	}

	return ctx.JSON(http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Please login.",
		User:    newAuthUser(usr, tutorID),
	})
}

// rollback removes a User whose profile could not be created.
func (api *authApi) rollback(ctx echo.Context, usr user.User) {
	if err := api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		api.logger.Error("rolling back registration", errors.Wrap(err, "deleting user"), usr)
	}
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	usr, err := api.svc.GetByEmail(rctx, data.Email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.ErrInvalidCredentials
		}
		return errors.Wrap(err, "finding user by email")
	}
	if usr.Role != data.Role {
		return errRoleMismatch
	}
	if usr, err = api.svc.Authenticate(rctx, data.Email, data.Password); err != nil {
		return errors.Wrap(err, "authenticating")
	}

	tutorID, err := tutorIDOf(rctx, api.tutors, usr)
	if err != nil {
		return err
	}
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr, tutorID))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   token,
		User:    newAuthUser(usr, tutorID),
	})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	tutorID, err := tutorIDOf(ctx.Request().Context(), api.tutors, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: usr, TutorID: tutorID})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc, api.tutors)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, MessageResponse{
		Message: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset with the new password."})
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		Role     string `json:"role" validate:"required,role"`
	}

	// AuthUser is the User as returned on registration & login.
	AuthUser struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Role    string `json:"role"`
		TutorID string `json:"tutor_id,omitempty"`
	}

	RegisterResponse struct {
		Message string   `json:"message"`
		User    AuthUser `json:"user"`
	}

	LoginResponse struct {
		Message string   `json:"message"`
		Token   string   `json:"token"`
		User    AuthUser `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	MeResponse struct {
		user.User
		TutorID string `json:"tutor_id,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func newAuthUser(usr user.User, tutorID string) AuthUser {
	return AuthUser{ID: usr.ID, Name: usr.Name, Email: usr.Email, Role: usr.Role, TutorID: tutorID}
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	lr.Role = core.CleanString(lr.Role, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
