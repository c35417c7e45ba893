package comments

type CreateCommentPayload struct {
	AudiobookID int    `json:"audiobook_id" validate:"required,min=1"`
	Content     string `json:"content" validate:"required,max=1000" mod:"trim"`
}
