package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	maxFailedAttempts = 5
	lockDuration      = 15 * time.Minute
	bcryptCost        = 12
)

// AuthService handles login, registration, 2FA verification, and the
// JWT token lifecycle.
type AuthService struct {
	store         port.AuthStore
	jwtSecret     []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	twoFactorCode string
	logger        *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(store port.AuthStore, jwtSecret string, accessTTL, refreshTTL time.Duration, twoFactorCode string, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:         store,
		jwtSecret:     []byte(jwtSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		twoFactorCode: twoFactorCode,
		logger:        logger,
	}
}

// ============================================================
// Login — POST /api/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, &domain.ErrUnauthorized{Message: "Invalid credentials"}
	}

	cred, err := s.store.GetCredentials(ctx, user.ID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			// User exists but no credentials were stored. Treat as invalid
			// credentials to avoid leaking internal state.
			s.logger.Warn("login: credentials missing for existing user",
				zap.String("user_id", user.ID),
			)
			return nil, &domain.ErrUnauthorized{Message: "Invalid credentials"}
		}
		return nil, fmt.Errorf("get credentials: %w", err)
	}

	// Check temporary lockout
	if cred.LockedUntil != nil && cred.LockedUntil.After(time.Now()) {
		remaining := time.Until(*cred.LockedUntil).Minutes()
		s.logger.Warn("login: account temporarily locked",
			zap.String("user_id", user.ID),
			zap.Float64("remaining_minutes", remaining),
		)
		return nil, &domain.ErrUnauthorized{
			Message: fmt.Sprintf("계정이 잠겼습니다. %.0f분 후 다시 시도해주세요", remaining),
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		cred.FailedAttempts++
		if cred.FailedAttempts >= maxFailedAttempts {
			lockedUntil := time.Now().Add(lockDuration)
			cred.LockedUntil = &lockedUntil
			s.logger.Warn("login: account locked after max attempts",
				zap.String("user_id", user.ID),
				zap.Int("attempts", cred.FailedAttempts),
			)
		} else {
			s.logger.Warn("login: failed password attempt",
				zap.String("user_id", user.ID),
				zap.Int("attempts", cred.FailedAttempts),
				zap.Int("max", maxFailedAttempts),
			)
		}
		_ = s.store.UpdateCredentials(ctx, cred)
		return nil, &domain.ErrUnauthorized{Message: "Invalid credentials"}
	}

	// Reset lockout state on success
	now := time.Now()
	cred.FailedAttempts = 0
	cred.LockedUntil = nil
	cred.LastLoginAt = &now
	_ = s.store.UpdateCredentials(ctx, cred)

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return resp, nil
}

// ============================================================
// Register — POST /api/auth/register
// ============================================================

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "이미 가입된 이메일입니다"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:      req.Name,
		Email:     email,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user, string(hash)); err != nil {
		return nil, err
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return resp, nil
}

func validateRegistration(req *domain.RegisterRequest) error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return &domain.ErrValidation{Field: "name", Message: "이름을 입력해주세요"}
	case !strings.Contains(req.Email, "@"):
		return &domain.ErrValidation{Field: "email", Message: "올바른 이메일을 입력해주세요"}
	case len(req.Password) < 8:
		return &domain.ErrValidation{Field: "password", Message: "비밀번호는 8자 이상이어야 합니다"}
	case req.Password != req.ConfirmPassword:
		return &domain.ErrValidation{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return nil
}

// ============================================================
// 2FA — POST /api/auth/2fa
// ============================================================

// VerifyTwoFactor checks the verification code. The demo server accepts
// a single configured code.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, req *domain.TwoFactorRequest) error {
	_, span := authTracer.Start(ctx, "AuthService.VerifyTwoFactor")
	defer span.End()

	if req.Code != s.twoFactorCode {
		s.logger.Warn("2fa: invalid code")
		return &domain.ErrInvalidCode{}
	}
	return nil
}

// ============================================================
// Profile — GET /api/user/profile
// ============================================================

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.GetProfile")
	defer span.End()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return user, nil
}

// issueTokens builds the LoginResponse with a fresh token pair.
func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*domain.LoginResponse, error) {
	accessToken, err := s.signAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, refreshHash, err := s.generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.store.StoreRefreshToken(ctx, user.ID, refreshHash, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.LoginResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}
