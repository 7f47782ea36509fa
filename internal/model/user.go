package model

// User represents a registered report owner
type User struct {
	ID           int64  `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`
	Email        string `json:"email,omitempty" db:"email"`
	CreatedAt    string `json:"created_at" db:"created_at"`
}

// UserInfo is the user payload embedded in auth responses
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// TokenResponse is returned by register and login
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	User        *UserInfo `json:"user"`
}
