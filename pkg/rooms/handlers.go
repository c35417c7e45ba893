package rooms

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/taletunes/taletunes/pkg/access"
	"github.com/taletunes/taletunes/pkg/audiobooks"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/uptrace/bun"
)

type handler struct {
	roomService      *Service
	audiobookService *audiobooks.Service
	store            storage.Store
	db               *bun.DB
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	params := CreateRoomPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	room, err := h.roomService.CreateRoom(ctx, user, CreateRoomOptions{
		Name:        params.Name,
		Description: params.Description,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	logger.FromContext(ctx).Info("room created", logger.Data{"room_id": room.ID, "user_id": user.ID})

	return errors.WithStack(c.JSON(http.StatusCreated, room))
}

// mine lists the rooms the user owns and the rooms they joined.
func (h *handler) mine(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	owned, err := h.roomService.ListOwned(ctx, user.ID)
	if err != nil {
		return err
	}
	joined, err := h.roomService.ListJoined(ctx, user.ID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{
		"owned_rooms":  owned,
		"joined_rooms": joined,
	}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	room, member, err := h.memberRoom(c, true)
	if err != nil {
		return err
	}

	books, err := h.roomService.ListAudiobooks(ctx, room.ID)
	if err != nil {
		return err
	}
	if err := h.audiobookService.MarkFavorites(ctx, user, books...); err != nil {
		return err
	}
	h.resolveURLs(books...)

	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{
		"room":         room,
		"audiobooks":   books,
		"is_owner":     member.Role == models.RoomRoleOwner,
		"is_moderator": member.Role == models.RoomRoleModerator,
	}))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	params := UpdateRoomPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	room, member, err := h.memberRoom(c, false)
	if err != nil {
		return err
	}
	if !member.CanManage() {
		return errcodes.Forbidden("Editing this room")
	}

	opts := UpdateRoomOptions{Columns: []string{}}
	if params.Name != nil && *params.Name != room.Name {
		room.Name = *params.Name
		opts.Columns = append(opts.Columns, "name")
	}
	if params.Description != nil {
		room.Description = params.Description
		if *params.Description == "" {
			room.Description = nil
		}
		opts.Columns = append(opts.Columns, "description")
	}
	if params.IsActive != nil && *params.IsActive != room.IsActive {
		if member.Role != models.RoomRoleOwner {
			return errcodes.Forbidden("Changing whether this room is active")
		}
		room.IsActive = *params.IsActive
		opts.Columns = append(opts.Columns, "is_active")
	}

	if err := h.roomService.UpdateRoom(ctx, room, opts); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, room))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	room, member, err := h.memberRoom(c, false)
	if err != nil {
		return err
	}
	if member.Role != models.RoomRoleOwner {
		return errcodes.Forbidden("Deleting this room")
	}

	if err := h.roomService.DeleteRoom(ctx, room); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{"message": "Room deleted successfully"}))
}

func (h *handler) join(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	params := JoinRoomPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	room, err := h.roomService.Join(ctx, user, params.RoomCode)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("joined room", logger.Data{"room_id": room.ID, "user_id": user.ID})

	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{
		"message": "You have joined " + room.Name + ".",
		"room":    room,
	}))
}

func (h *handler) leave(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Room")
	}

	if err := h.roomService.Leave(ctx, user, id); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{"message": "You have left the room."}))
}

func (h *handler) updateMemberRole(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		return errcodes.NotFound("Room member")
	}

	params := UpdateMemberRolePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	room, member, err := h.memberRoom(c, false)
	if err != nil {
		return err
	}
	if member.Role != models.RoomRoleOwner {
		return errcodes.Forbidden("Changing member roles")
	}

	updated, err := h.roomService.SetMemberRole(ctx, room.ID, userID, params.Role)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, updated))
}

func (h *handler) listAudiobooks(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	room, _, err := h.memberRoom(c, false)
	if err != nil {
		return err
	}

	books, err := h.roomService.ListAudiobooks(ctx, room.ID)
	if err != nil {
		return err
	}
	if err := h.audiobookService.MarkFavorites(ctx, user, books...); err != nil {
		return err
	}
	h.resolveURLs(books...)

	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{"audiobooks": books}))
}

// uploadAudiobook takes the same form as a regular upload. The result is
// private and attached to the room.
func (h *handler) uploadAudiobook(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	params := audiobooks.UploadPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	room, _, err := h.memberRoom(c, false)
	if err != nil {
		return err
	}

	opts, err := params.CreateOptions()
	if err != nil {
		return err
	}
	opts.RoomID = &room.ID

	book, err := h.audiobookService.CreateAudiobook(ctx, user, opts)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("audiobook uploaded to room", logger.Data{"audiobook_id": book.ID, "room_id": room.ID, "user_id": user.ID})

	h.resolveURLs(book)
	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

func (h *handler) retrieveAudiobook(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	room, _, err := h.memberRoom(c, false)
	if err != nil {
		return err
	}
	audiobookID, err := strconv.Atoi(c.Param("audiobookId"))
	if err != nil {
		return errcodes.NotFound("Audiobook")
	}

	book, err := h.roomService.RetrieveAudiobook(ctx, room.ID, audiobookID)
	if err != nil {
		return err
	}
	if err := h.audiobookService.MarkFavorites(ctx, user, book); err != nil {
		return err
	}
	h.resolveURLs(book)

	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{"room": room, "audiobook": book}))
}

// attachAudiobook shares one of the user's own audiobooks with the room.
func (h *handler) attachAudiobook(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	room, _, err := h.memberRoom(c, false)
	if err != nil {
		return err
	}
	audiobookID, err := strconv.Atoi(c.Param("audiobookId"))
	if err != nil {
		return errcodes.NotFound("Audiobook")
	}

	book, err := h.audiobookService.RetrieveAudiobook(ctx, audiobooks.RetrieveAudiobookOptions{ID: &audiobookID})
	if err != nil {
		return err
	}
	if book.UserID != user.ID {
		return errcodes.Forbidden("Sharing this audiobook")
	}

	if err := h.roomService.AttachAudiobook(ctx, room.ID, book); err != nil {
		return err
	}

	h.resolveURLs(book)
	return errors.WithStack(c.JSON(http.StatusCreated, echo.Map{"audiobook": book}))
}

// removeAudiobook detaches an audiobook. Its uploader and the room's owner or
// moderators may do so.
func (h *handler) removeAudiobook(c echo.Context) error {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	room, member, err := h.memberRoom(c, false)
	if err != nil {
		return err
	}
	audiobookID, err := strconv.Atoi(c.Param("audiobookId"))
	if err != nil {
		return errcodes.NotFound("Audiobook")
	}

	book, err := h.roomService.RetrieveAudiobook(ctx, room.ID, audiobookID)
	if err != nil {
		return err
	}
	if book.UserID != user.ID && !member.CanManage() {
		return errcodes.Forbidden("Removing this audiobook")
	}

	result, err := h.roomService.RemoveAudiobook(ctx, user, room.ID, book)
	if err != nil {
		return err
	}

	message := "Audiobook removed from the room."
	if result.Deleted {
		message = "Audiobook deleted successfully"
	}
	return errors.WithStack(c.JSON(http.StatusOK, echo.Map{
		"message": message,
		"deleted": result.Deleted,
	}))
}

// memberRoom loads the room named by the id param along with the signed-in
// user's membership. Non-members are refused.
func (h *handler) memberRoom(c echo.Context, withMembers bool) (*models.Room, *models.RoomMember, error) {
	ctx := c.Request().Context()
	user := c.Get("user").(*models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, nil, errcodes.NotFound("Room")
	}

	room, err := h.roomService.RetrieveRoom(ctx, RetrieveRoomOptions{ID: &id, WithMembers: withMembers})
	if err != nil {
		return nil, nil, err
	}

	member, err := membershipOf(ctx, h.db, room.ID, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return room, member, nil
}

func membershipOf(ctx context.Context, db bun.IDB, roomID, userID int) (*models.RoomMember, error) {
	member, err := access.Membership(ctx, db, roomID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, errcodes.Forbidden("Viewing this room")
	}
	return member, nil
}

func (h *handler) resolveURLs(books ...*models.Audiobook) {
	for _, book := range books {
		book.ResolveURLs(h.store.URL)
	}
}
