package dto

// SignupRequest payload for new accounts.
type SignupRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginRequest payload for login. Submitted form-encoded.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// AccessTokenResponse is the login response body. The refresh token travels
// in an http-only cookie, never in the body.
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

// RefreshResponse is the refresh response body.
type RefreshResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}
