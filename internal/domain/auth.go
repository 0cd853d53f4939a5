package domain

import "time"

// ============================================================
// Auth requests / responses
// ============================================================

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the token pair after login, registration,
// or refresh. User is omitted on refresh.
type LoginResponse struct {
	User              *User  `json:"user,omitempty"`
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
	ExpiresIn         int    `json:"expiresIn"` // seconds
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
}

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// TwoFactorRequest is the payload for POST /api/auth/2fa.
type TwoFactorRequest struct {
	Code string `json:"code"`
}

// RefreshRequest is the payload for POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ============================================================
// Stored auth state
// ============================================================

// Credential holds the bcrypt hash and lockout state for a user.
// Never serialized to API responses.
type Credential struct {
	UserID         string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
}

// RefreshToken is a stored refresh token. Only the sha256 hash of the
// raw token is persisted.
type RefreshToken struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
}
