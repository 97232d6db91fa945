package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/qcom/accounts/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	TokenTypeSession           = "session"
	TokenTypeEmailVerification = "email_verification"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTService struct {
	secretKey        []byte
	sessionExpiry    time.Duration
	emailTokenExpiry time.Duration
	now              func() time.Time
	logger           *logrus.Logger
}

func NewJWTService(cfg *config.JWTConfig, logger *logrus.Logger) (*JWTService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &JWTService{
		secretKey:        secretKey,
		sessionExpiry:    cfg.SessionExpiry,
		emailTokenExpiry: cfg.EmailTokenExpiry,
		now:              time.Now,
		logger:           logger,
	}, nil
}

// SetClock replaces the time source used for issuing and validating tokens.
func (s *JWTService) SetClock(now func() time.Time) {
	s.now = now
}

type Claims struct {
	AccountID string `json:"id"`
	Email     string `json:"email,omitempty"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// IssueEmailToken returns a token binding the account and email, and the
// time it stops verifying.
func (s *JWTService) IssueEmailToken(accountID, email string) (string, time.Time, error) {
	expiresAt := s.now().Add(s.emailTokenExpiry)
	token, err := s.sign(accountID, email, TokenTypeEmailVerification, s.emailTokenExpiry)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// IssueSessionToken signs a session token. A zero session expiry yields a
// token without an exp claim.
func (s *JWTService) IssueSessionToken(accountID string) (string, error) {
	return s.sign(accountID, "", TokenTypeSession, s.sessionExpiry)
}

func (s *JWTService) sign(accountID, email, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	jti := uuid.New().String()

	claims := &Claims{
		AccountID: accountID,
		Email:     email,
		Type:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  accountID,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       jti,
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).WithField("type", tokenType).Error("Failed to sign token")
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// VerifyToken checks signature, expiry and type. Every failure wraps
// ErrInvalidToken.
func (s *JWTService) VerifyToken(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuedAt())

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Type != tokenType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, tokenType, claims.Type)
	}

	if claims.AccountID == "" {
		return nil, fmt.Errorf("%w: missing account id", ErrInvalidToken)
	}

	return claims, nil
}
