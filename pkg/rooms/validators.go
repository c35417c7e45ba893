package rooms

type CreateRoomPayload struct {
	Name        string  `json:"name" validate:"required,max=255" mod:"trim"`
	Description *string `json:"description" validate:"omitempty,max=1000" mod:"trim"`
}

// UpdateRoomPayload edits a room. Only the owner may change IsActive.
type UpdateRoomPayload struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255" mod:"trim"`
	Description *string `json:"description" validate:"omitempty,max=1000" mod:"trim"`
	IsActive    *bool   `json:"is_active"`
}

type JoinRoomPayload struct {
	RoomCode string `json:"room_code" validate:"required,len=6" mod:"trim,ucase"`
}

type UpdateMemberRolePayload struct {
	Role string `json:"role" validate:"required,oneof=member moderator" mod:"trim,lcase"`
}
