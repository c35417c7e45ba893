package auth

// RegisterPayload represents the registration request body.
type RegisterPayload struct {
	Name     string `json:"name" validate:"required,max=255" mod:"trim"`
	Username string `json:"username" validate:"required,min=3,max=255,alphanum" mod:"trim"`
	Email    string `json:"email" validate:"required,email,max=255" mod:"trim,lcase"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginPayload represents the login request body. Login is a username or an
// email address.
type LoginPayload struct {
	Login    string `json:"login" validate:"required" mod:"trim"`
	Password string `json:"password" validate:"required"`
}
