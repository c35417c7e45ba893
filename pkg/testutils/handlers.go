package testutils

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/auth"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
)

type handler struct {
	db *bun.DB
}

// createUserRequest is the request body for creating a test user.
type createUserRequest struct {
	Username string  `json:"username" validate:"required"`
	Password string  `json:"password" validate:"required"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
}

// createUserResponse is the response body for creating a test user.
type createUserResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// createUser creates a user that can sign in with the given password.
// POST /test/users.
func (h *handler) createUser(c echo.Context) error {
	ctx := c.Request().Context()

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}

	name := req.Username
	if req.Name != nil {
		name = *req.Name
	}
	email := req.Username + "@example.com"
	if req.Email != nil {
		email = *req.Email
	}

	now := time.Now()
	user := &models.User{
		CreatedAt:    now,
		UpdatedAt:    now,
		Name:         name,
		Username:     req.Username,
		Email:        email,
		PasswordHash: &hashedPassword,
	}

	_, err = h.db.NewInsert().Model(user).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to create user")
	}

	return c.JSON(http.StatusCreated, createUserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

// deleteAllUsersResponse is the response body for deleting all users.
type deleteAllUsersResponse struct {
	Deleted int `json:"deleted"`
}

// deleteAllUsers deletes all users. Their rooms, audiobooks, memberships,
// favorites, and comments go with them through the foreign key cascades.
// DELETE /test/users.
func (h *handler) deleteAllUsers(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.db.NewDelete().
		Model((*models.User)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete users")
	}

	deleted, _ := result.RowsAffected()

	return c.JSON(http.StatusOK, deleteAllUsersResponse{
		Deleted: int(deleted),
	})
}
