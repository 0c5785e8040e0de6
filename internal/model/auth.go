package model

// LoginRequest is the POST /auth/login body.
type LoginRequest struct {
	Username string `json:"username" binding:"required" validate:"required"`
	Password string `json:"password" binding:"required" validate:"required"`
}

// AuthUser is the user object the remote API returns next to a token.
type AuthUser struct {
	ID       int    `json:"id" validate:"gt=0"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type LoginResponse struct {
	Token string   `json:"token" validate:"required"`
	User  AuthUser `json:"user"`
}

// VerifyResponse is the GET /auth/verificar-token payload.
type VerifyResponse struct {
	User AuthUser `json:"user"`
}

// Principal builds the explicit auth context for this login.
func (r LoginResponse) Principal() Principal {
	return Principal{UserID: r.User.ID, Username: r.User.Username, Token: r.Token}
}
