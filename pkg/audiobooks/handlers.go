package audiobooks

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/taletunes/taletunes/pkg/access"
	"github.com/taletunes/taletunes/pkg/covers"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/taletunes/taletunes/pkg/uploads"
	"github.com/uptrace/bun"
)

type handler struct {
	audiobookService *Service
	store            storage.Store
	db               *bun.DB
}

func (h *handler) dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	owned, err := h.audiobookService.ListOwned(ctx, user.ID)
	if err != nil {
		return err
	}
	others, err := h.audiobookService.ListPublicFromOthers(ctx, user.ID)
	if err != nil {
		return err
	}
	favorites, err := h.audiobookService.ListFavorites(ctx, user)
	if err != nil {
		return err
	}

	if err := h.audiobookService.MarkFavorites(ctx, user, append(append([]*models.Audiobook{}, owned...), others...)...); err != nil {
		return err
	}
	h.resolveURLs(owned, others, favorites)

	resp := struct {
		UserAudiobooks     []*models.Audiobook `json:"user_audiobooks"`
		OtherAudiobooks    []*models.Audiobook `json:"other_audiobooks"`
		FavoriteAudiobooks []*models.Audiobook `json:"favorite_audiobooks"`
	}{owned, others, favorites}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

// uploadForm describes what the upload form accepts.
func (h *handler) uploadForm(c echo.Context) error {
	resp := struct {
		Categories       []string `json:"categories"`
		MaxCoverImages   int      `json:"max_cover_images"`
		MaxFileSizeBytes int      `json:"max_file_size_bytes"`
		CoverTypes       []string `json:"cover_types"`
		AudioTypes       []string `json:"audio_types"`
	}{
		Categories:       models.Categories,
		MaxCoverImages:   uploads.MaxCoverImages,
		MaxFileSizeBytes: uploads.MaxFileSize,
		CoverTypes:       []string{"jpeg", "jpg", "png"},
		AudioTypes:       []string{"mp3"},
	}
	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) upload(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	params := UploadPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts, err := params.CreateOptions()
	if err != nil {
		return err
	}

	book, err := h.audiobookService.CreateAudiobook(ctx, user, opts)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("audiobook uploaded", logger.Data{"audiobook_id": book.ID, "user_id": user.ID})

	book.ResolveURLs(h.store.URL)
	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

// all lists public audiobooks grouped by category.
func (h *handler) all(c echo.Context) error {
	ctx := c.Request().Context()

	books, err := h.audiobookService.ListPublic(ctx)
	if err != nil {
		return err
	}
	h.resolveURLs(books)

	grouped := map[string][]*models.Audiobook{}
	for _, book := range books {
		grouped[book.Category] = append(grouped[book.Category], book)
	}
	categories := []string{}
	for _, category := range models.Categories {
		if len(grouped[category]) > 0 {
			categories = append(categories, category)
		}
	}

	resp := struct {
		Audiobooks map[string][]*models.Audiobook `json:"audiobooks"`
		Categories []string                       `json:"categories"`
	}{grouped, categories}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) searchByCode(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	params := SearchByCodeQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.audiobookService.RetrieveAudiobook(ctx, RetrieveAudiobookOptions{GeneratedCode: &params.Code})
	if err != nil {
		if errors.Is(err, errcodes.NotFound("Audiobook")) {
			return errcodes.NotFoundWithMessage("Audiobook not found.")
		}
		return err
	}
	if err := access.RequireView(ctx, h.db, user, book); err != nil {
		return err
	}
	if err := h.audiobookService.MarkFavorites(ctx, user, book); err != nil {
		return err
	}

	book.ResolveURLs(h.store.URL)
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{"audiobook": book}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	viewer, _ := c.Get("user").(*models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Audiobook")
	}

	book, err := h.audiobookService.RetrieveAudiobook(ctx, RetrieveAudiobookOptions{ID: &id, WithDetails: true})
	if err != nil {
		return err
	}
	if err := access.RequireView(ctx, h.db, viewer, book); err != nil {
		return err
	}
	if err := h.audiobookService.MarkFavorites(ctx, viewer, book); err != nil {
		return err
	}

	book.ResolveURLs(h.store.URL)
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{"audiobook": book}))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Audiobook")
	}

	params := UpdateAudiobookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.audiobookService.RetrieveAudiobook(ctx, RetrieveAudiobookOptions{ID: &id})
	if err != nil {
		return err
	}
	if book.UserID != user.ID {
		return errcodes.Forbidden("Editing this audiobook")
	}

	opts := UpdateAudiobookOptions{Columns: []string{}}
	if params.Title != nil && *params.Title != "" && *params.Title != book.Title {
		book.Title = *params.Title
		opts.Columns = append(opts.Columns, "title")
	}
	if params.Author != nil && *params.Author != "" && *params.Author != book.Author {
		book.Author = *params.Author
		opts.Columns = append(opts.Columns, "author")
	}
	if params.Description != nil {
		book.Description = nilIfEmpty(params.Description)
		opts.Columns = append(opts.Columns, "description")
	}
	if params.Category != nil && *params.Category != "" && *params.Category != book.Category {
		book.Category = *params.Category
		opts.Columns = append(opts.Columns, "category")
	}
	if params.IsPublic != nil && *params.IsPublic != book.IsPublic {
		book.IsPublic = *params.IsPublic
		opts.Columns = append(opts.Columns, "is_public")
	}

	if err := h.audiobookService.UpdateAudiobook(ctx, book, opts); err != nil {
		return err
	}

	book.ResolveURLs(h.store.URL)
	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) toggleFavorite(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Audiobook")
	}

	book, err := h.audiobookService.RetrieveAudiobook(ctx, RetrieveAudiobookOptions{ID: &id})
	if err != nil {
		return err
	}
	if err := access.RequireView(ctx, h.db, user, book); err != nil {
		return err
	}

	favorited, err := h.audiobookService.ToggleFavorite(ctx, user, book)
	if err != nil {
		return err
	}

	resp := struct {
		Success    bool `json:"success"`
		IsFavorite bool `json:"is_favorite"`
	}{true, favorited}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

// download streams the audio file as an attachment named after the title.
func (h *handler) download(c echo.Context) error {
	ctx := c.Request().Context()
	viewer, _ := c.Get("user").(*models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Audiobook")
	}

	book, err := h.audiobookService.RetrieveAudiobook(ctx, RetrieveAudiobookOptions{ID: &id})
	if err != nil {
		return err
	}
	if err := access.RequireView(ctx, h.db, viewer, book); err != nil {
		return err
	}

	rc, info, err := h.store.Open(ctx, book.AudioFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errcodes.NotFound("Audio file")
		}
		return err
	}
	defer rc.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", downloadFilename(book)))
	if info.Size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	}
	return errors.WithStack(c.Stream(http.StatusOK, "audio/mpeg", rc))
}

// cover streams one cover image, or a JPEG thumbnail of it when a width or
// height is requested.
func (h *handler) cover(c echo.Context) error {
	ctx := c.Request().Context()
	viewer, _ := c.Get("user").(*models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Audiobook")
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return errcodes.NotFound("Cover image")
	}

	params := CoverQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.audiobookService.RetrieveAudiobook(ctx, RetrieveAudiobookOptions{ID: &id})
	if err != nil {
		return err
	}
	if err := access.RequireView(ctx, h.db, viewer, book); err != nil {
		return err
	}
	if index < 0 || index >= len(book.CoverImages) {
		return errcodes.NotFound("Cover image")
	}

	rc, info, err := h.store.Open(ctx, book.CoverImages[index])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errcodes.NotFound("Cover image")
		}
		return err
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "private, max-age=3600")

	if params.Width == 0 && params.Height == 0 {
		return errors.WithStack(c.Stream(http.StatusOK, info.ContentType, rc))
	}

	thumb, err := covers.Thumbnail(rc, params.Width, params.Height)
	if err != nil {
		return err
	}
	return errors.WithStack(c.Stream(http.StatusOK, "image/jpeg", bytes.NewReader(thumb)))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Audiobook")
	}

	book, err := h.audiobookService.RetrieveAudiobook(ctx, RetrieveAudiobookOptions{ID: &id})
	if err != nil {
		return err
	}
	if book.UserID != user.ID {
		return errcodes.Forbidden("Deleting this audiobook")
	}

	if err := h.audiobookService.DeleteAudiobook(ctx, book); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("audiobook deleted", logger.Data{"audiobook_id": book.ID, "user_id": user.ID})

	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{"message": "Audiobook deleted successfully"}))
}

func (h *handler) resolveURLs(lists ...[]*models.Audiobook) {
	for _, books := range lists {
		for _, book := range books {
			book.ResolveURLs(h.store.URL)
		}
	}
}

func downloadFilename(book *models.Audiobook) string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, strcase.ToKebab(book.Title))
	if name == "" {
		name = "audiobook"
	}
	return name + ".mp3"
}
