package users

// UpdateProfilePayload represents the request body for editing one's own
// profile. Only the fields present are changed.
type UpdateProfilePayload struct {
	Name            *string `json:"name" validate:"omitempty,max=255" mod:"trim"`
	Username        *string `json:"username" validate:"omitempty,min=3,max=255,alphanum" mod:"trim"`
	Email           *string `json:"email" validate:"omitempty,email,max=255" mod:"trim,lcase"`
	Password        *string `json:"password" validate:"omitempty,min=8"`
	CurrentPassword *string `json:"current_password"`
}
