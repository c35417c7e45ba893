package users

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/auth"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/taletunes/taletunes/pkg/storage"
)

type handler struct {
	userService *Service
	store       storage.Store
}

type profileResponse struct {
	User       *models.Profile     `json:"user"`
	Audiobooks []*models.Audiobook `json:"audiobooks"`
	*ProfileStats
}

func (h *handler) show(c echo.Context) error {
	ctx := c.Request().Context()
	viewer, _ := c.Get("user").(*models.User)

	user, err := h.userService.RetrieveByUsername(ctx, c.Param("username"))
	if err != nil {
		return err
	}

	books, err := h.userService.ListAudiobooks(ctx, user.ID, viewer)
	if err != nil {
		return err
	}
	for _, book := range books {
		book.ResolveURLs(h.store.URL)
	}

	stats, err := h.userService.Stats(ctx, user.ID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, profileResponse{
		User:         user.PublicProfile(),
		Audiobooks:   books,
		ProfileStats: stats,
	}))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthorized()
	}

	params := UpdateProfilePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateOptions{Columns: []string{}}

	if params.Name != nil && *params.Name != "" && *params.Name != user.Name {
		user.Name = *params.Name
		opts.Columns = append(opts.Columns, "name")
	}
	if params.Username != nil && *params.Username != "" && *params.Username != user.Username {
		user.Username = *params.Username
		opts.Columns = append(opts.Columns, "username")
	}
	if params.Email != nil && *params.Email != "" && *params.Email != user.Email {
		user.Email = *params.Email
		opts.Columns = append(opts.Columns, "email")
	}
	if params.Password != nil && *params.Password != "" {
		// Accounts created through Google have no password to confirm.
		if user.PasswordHash != nil {
			if params.CurrentPassword == nil || *params.CurrentPassword == "" {
				return errcodes.ValidationError("Current password is required to set a new password.")
			}
			if !VerifyPassword(user, *params.CurrentPassword) {
				return errcodes.ValidationError("The current password is incorrect.")
			}
		}
		hash, err := auth.HashPassword(*params.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = &hash
		opts.Columns = append(opts.Columns, "password_hash")
	}

	if err := h.userService.Update(ctx, user, opts); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, user.Account()))
}
