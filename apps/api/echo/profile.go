package echoapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

const (
	avatarField   = "avatar"
	uploadsPrefix = "/uploads/"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type profileApi struct {
	conf     *core.Config
	logger   core.Logger
	svc      user.Service
	tutors   *tutor.Service
	validate *validator.Validate
}

func registerProfileAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := profileApi{
		conf:     deps.Conf,
		logger:   deps.Logger,
		svc:      deps.UserSvc,
		tutors:   deps.TutorSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/profile", jwt)
	pg.GET("/me", api.retrieve)
	pg.PATCH("/me", api.update)
	pg.PATCH("/password", api.changePassword)
	pg.POST("/avatar", api.uploadAvatar)
}

// Handlers

func (api *profileApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ProfileResponse{User: usr})
}

func (api *profileApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(usr, api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	if usr, err = api.svc.Update(rctx, usr, data); err != nil {
		return errors.Wrap(err, "updating user")
	}
	if err = api.tutors.SyncProfile(rctx, usr.ID, usr.Name, usr.ProfilePic); err != nil {
		return errors.Wrap(err, "syncing tutor profile")
	}
	return ctx.JSON(http.StatusOK, ProfileResponse{Message: "Profile updated", User: usr})
}

func (api *profileApi) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if _, err = api.svc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Password updated"})
}

func (api *profileApi) uploadAvatar(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile(avatarField)
	if err != nil {
		return errAvatarRequired
	}
	name, err := api.saveUpload(fh)
	if err != nil {
		return errors.Wrap(err, "saving avatar")
	}

	oldPic := usr.ProfilePic
	rctx := ctx.Request().Context()
	if usr, err = api.svc.SetProfilePic(rctx, usr, uploadsPrefix+name); err != nil {
		api.removeUpload(name)
		return errors.Wrap(err, "setting profile pic")
	}
	if strings.HasPrefix(oldPic, uploadsPrefix) {
		api.removeUpload(strings.TrimPrefix(oldPic, uploadsPrefix))
	}
	if err = api.tutors.SyncProfile(rctx, usr.ID, usr.Name, usr.ProfilePic); err != nil {
		return errors.Wrap(err, "syncing tutor profile")
	}

	return ctx.JSON(http.StatusOK, AvatarResponse{Message: "Avatar updated", User: usr, ProfilePic: usr.ProfilePic})
}

// saveUpload copies an uploaded file into the upload dir as `<unix millis>-<sanitized name>`.
func (api *profileApi) saveUpload(fh *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(api.conf.UploadDir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload dir")
	}

	safe := unsafeFilenameChars.ReplaceAllString(filepath.Base(fh.Filename), "_")
	if safe == "" || safe == "." || safe == "_" {
		safe = avatarField
	}
	name := fmt.Sprintf("%d-%s", time.Now().UnixNano()/int64(time.Millisecond), safe)

	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening upload")
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(filepath.Join(api.conf.UploadDir, name))
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		api.removeUpload(name)
		return "", errors.Wrap(err, "writing file")
	}
	return name, errors.Wrap(dst.Close(), "closing file")
}

func (api *profileApi) removeUpload(name string) {
	path := filepath.Join(api.conf.UploadDir, filepath.Base(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		api.logger.Warn(fmt.Sprintf("removing upload %s: %v", path, err), err)
	}
}

type (
	ProfileResponse struct {
		Message string    `json:"message,omitempty"`
		User    user.User `json:"user"`
	}

	AvatarResponse struct {
		Message    string    `json:"message"`
		User       user.User `json:"user"`
		ProfilePic string    `json:"profile_pic"`
	}
)
