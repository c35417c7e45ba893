package comments

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/access"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
)

type handler struct {
	commentService *Service
	db             *bun.DB
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	params := CreateCommentPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book := &models.Audiobook{}
	err := h.db.NewSelect().Model(book).Where("a.id = ?", params.AudiobookID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Audiobook")
		}
		return errors.WithStack(err)
	}
	if err := access.RequireView(ctx, h.db, user, book); err != nil {
		return err
	}

	comment, err := h.commentService.CreateComment(ctx, user, CreateCommentOptions{
		AudiobookID: book.ID,
		Content:     params.Content,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, comment))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Comment")
	}

	comment, err := h.commentService.RetrieveComment(ctx, id)
	if err != nil {
		return err
	}
	if comment.UserID != user.ID {
		return errcodes.Forbidden("Deleting this comment")
	}

	if err := h.commentService.DeleteComment(ctx, comment); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{"message": "Comment deleted successfully"}))
}
