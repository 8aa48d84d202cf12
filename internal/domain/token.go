package domain

// TokenPair is what the auth endpoints return: the short-lived access token
// and the long-lived refresh token, both signed JWTs. Only the refresh
// token's fingerprint is ever stored server-side.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    int64  `json:"expires_in"`           // seconds until access expiry
}
