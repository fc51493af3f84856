package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "notion-sync-backend/internal/auth/domain"
	"notion-sync-backend/internal/auth/repository"
	"notion-sync-backend/pkg/firebase"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUserNotFound = errors.New("user not found")

	ErrInvalidProfileField = errors.New("invalid profile field")
)

// AuthUsecase defines the interface for identity, session and profile logic
type AuthUsecase interface {
	// ValidateToken verifies a bearer ID token
	ValidateToken(ctx context.Context, idToken string) (*firebase.Identity, error)
	// ValidateSession verifies a session cookie
	ValidateSession(ctx context.Context, cookie string) (*firebase.Identity, error)
	// CreateSession exchanges an ID token for a session cookie, creating the user record on first sign-in
	CreateSession(ctx context.Context, idToken string) (string, *authdomain.User, error)
	SessionExpiry() time.Duration

	GetUser(ctx context.Context, userID string) (*authdomain.User, error)
	GetProfile(ctx context.Context, userID string) (map[string]interface{}, error)
	// UpdateProfile merges fields into the stored profile and returns the result
	UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) (map[string]interface{}, error)

	RegisterFCMToken(ctx context.Context, userID, token, deviceInfo string) error
	UnregisterFCMToken(ctx context.Context, userID, token string) error
}

// TokenVerifier validates Firebase credentials
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebase.Identity, error)
	CreateSessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
	VerifySessionCookie(ctx context.Context, cookie string) (*firebase.Identity, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	verifier      TokenVerifier
	userRepo      repository.UserRepository
	fcmTokenRepo  repository.FCMTokenRepository
	sessionExpiry time.Duration
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(verifier TokenVerifier, userRepo repository.UserRepository, fcmTokenRepo repository.FCMTokenRepository, sessionExpiry time.Duration) AuthUsecase {
	return &authUsecase{
		verifier:      verifier,
		userRepo:      userRepo,
		fcmTokenRepo:  fcmTokenRepo,
		sessionExpiry: sessionExpiry,
	}
}

func (u *authUsecase) ValidateToken(ctx context.Context, idToken string) (*firebase.Identity, error) {
	identity, err := u.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return identity, nil
}

func (u *authUsecase) ValidateSession(ctx context.Context, cookie string) (*firebase.Identity, error) {
	identity, err := u.verifier.VerifySessionCookie(ctx, cookie)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return identity, nil
}

func (u *authUsecase) CreateSession(ctx context.Context, idToken string) (string, *authdomain.User, error) {
	identity, err := u.ValidateToken(ctx, idToken)
	if err != nil {
		return "", nil, err
	}

	user, err := u.userRepo.EnsureUser(ctx, identity.UID, identity.Email)
	if err != nil {
		return "", nil, err
	}

	cookie, err := u.verifier.CreateSessionCookie(ctx, idToken, u.sessionExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session cookie: %w", err)
	}
	return cookie, user, nil
}

func (u *authUsecase) SessionExpiry() time.Duration {
	return u.sessionExpiry
}

func (u *authUsecase) GetUser(ctx context.Context, userID string) (*authdomain.User, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (u *authUsecase) GetProfile(ctx context.Context, userID string) (map[string]interface{}, error) {
	user, err := u.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Profile == nil {
		return map[string]interface{}{}, nil
	}
	return user.Profile, nil
}

func (u *authUsecase) UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) (map[string]interface{}, error) {
	for key := range fields {
		// Keys become database path segments.
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "/.$#[]") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProfileField, key)
		}
	}
	if _, err := u.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := u.userRepo.UpdateProfile(ctx, userID, fields); err != nil {
			return nil, err
		}
	}
	return u.GetProfile(ctx, userID)
}

func (u *authUsecase) RegisterFCMToken(ctx context.Context, userID, token, deviceInfo string) error {
	return u.fcmTokenRepo.SaveToken(ctx, userID, token, deviceInfo)
}

func (u *authUsecase) UnregisterFCMToken(ctx context.Context, userID, token string) error {
	return u.fcmTokenRepo.DeleteToken(ctx, userID, token)
}
