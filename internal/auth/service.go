package auth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkaminsky/PocketLedger/internal/user"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInternalError         = errors.New("internal server error")
	ErrTwoFactorRequired     = errors.New("two-factor code required")
	ErrInvalid2FACode        = errors.New("2fa code is invalid")
	ErrUser2FAAlreadyEnabled = errors.New("2fa auth already enabled")
	ErrUser2FANotInitialized = errors.New("2fa secret has not been generated")
)

type Service interface {
	Login(ctx context.Context, emailOrLogin, password, totpCode string) (*user.User, string, error)
	InitTwoFactor(ctx context.Context, userID string) (string, error)
	ConfirmTwoFactor(ctx context.Context, userID, code string) error
	JWTAccessTokenMiddleware() func(http.Handler) http.Handler
}

type service struct {
	userService   user.Service
	jwtManager    JWTManagerInterface
	authenticator Authenticator
}

func NewAuthService(userService user.Service, jwtManager JWTManagerInterface) Service {
	return &service{
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// Login verifies credentials and, when the account has TOTP enabled, the
// one-time code. A successful login returns a short-lived access token.
func (s *service) Login(ctx context.Context, emailOrLogin, password, totpCode string) (*user.User, string, error) {
	existingUser, err := s.userService.GetUserByLoginOrEmail(ctx, emailOrLogin)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", ErrInternalError
	}

	if err := bcrypt.CompareHashAndPassword([]byte(existingUser.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if existingUser.TwoFactorEnabled {
		if totpCode == "" {
			return nil, "", ErrTwoFactorRequired
		}
		if !s.authenticator.VerifyCode(existingUser.TwoFactorSecret, totpCode) {
			return nil, "", ErrInvalid2FACode
		}
	}

	accessToken, err := s.jwtManager.GenerateAccessJWT(existingUser.ID, defaultJWTDuration)
	if err != nil {
		return nil, "", ErrInternalError
	}
	return existingUser, accessToken, nil
}

// InitTwoFactor generates and stores a pending TOTP secret and returns the
// otpauth URI for the authenticator app. The factor stays off until the user
// confirms a first code.
func (s *service) InitTwoFactor(ctx context.Context, userID string) (string, error) {
	existingUser, err := s.userService.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", ErrInternalError
	}
	if existingUser.TwoFactorEnabled {
		return "", ErrUser2FAAlreadyEnabled
	}

	otpURI, secret, err := s.authenticator.GenerateSecret(existingUser.Email)
	if err != nil {
		return "", err
	}
	if err := s.userService.SetTwoFactorSecret(ctx, userID, secret); err != nil {
		return "", ErrInternalError
	}
	return otpURI, nil
}

func (s *service) ConfirmTwoFactor(ctx context.Context, userID, code string) error {
	existingUser, err := s.userService.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return ErrInternalError
	}
	if existingUser.TwoFactorEnabled {
		return ErrUser2FAAlreadyEnabled
	}
	if existingUser.TwoFactorSecret == "" {
		return ErrUser2FANotInitialized
	}
	if !s.authenticator.VerifyCode(existingUser.TwoFactorSecret, code) {
		return ErrInvalid2FACode
	}
	if err := s.userService.EnableTwoFactor(ctx, userID); err != nil {
		return ErrInternalError
	}
	return nil
}
