package httpapi

import "github.com/MrEthical07/tokenauth"

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
	DeviceID string `json:"deviceId" validate:"max=128"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	DeviceID     string `json:"deviceId" validate:"max=128"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=128"`
	NewPassword     string `json:"newPassword" validate:"required,max=128"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

type resetConfirmRequest struct {
	Email       string `json:"email" validate:"required,max=254"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=128"`
}

// result is the envelope of every response. Exactly one of the optional
// groups is set.
type result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`

	User        *tokenauth.UserSummary `json:"user,omitempty"`
	Tokens      *tokenauth.TokenPair   `json:"tokens,omitempty"`
	RequiresMFA bool                   `json:"requiresMFA,omitempty"`
	MFAToken    string                 `json:"mfaToken,omitempty"`
	SessionID   string                 `json:"sessionId,omitempty"`
}

func ok() result {
	return result{Success: true}
}
