package models

// Identity is the authenticated principal attached to a connection.
type Identity struct {
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
}
