package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/ports"
)

// Verification failure reasons. Callers must be able to tell an expired
// token from a forged one and from a token scoped to another execution.
var (
	ErrTokenExpired      = errors.New("subscription token expired")
	ErrTokenInvalid      = errors.New("subscription token invalid")
	ErrExecutionMismatch = errors.New("subscription token not scoped to this execution")
)

// Claims binds a token to one execution and one user
type Claims struct {
	ExecutionID string `json:"execution_id"`
	jwt.RegisteredClaims
}

// Service issues and verifies the ephemeral, execution-scoped tokens the
// live-status channel accepts in place of session credentials. Tokens are
// never persisted; the signature is the only state.
type Service struct {
	secret  []byte
	ttl     time.Duration
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewService creates a subscription token service
func NewService(secret string, ttl time.Duration, metrics ports.MetricsCollector, logger *zap.Logger) *Service {
	return &Service{
		secret:  []byte(secret),
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Issue mints a signed token scoped to (executionID, userID) with a
// minutes-scale expiry
func (s *Service) Issue(executionID, userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		ExecutionID: executionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	s.metrics.RecordTokenIssued()
	s.logger.Debug("subscription token issued",
		zap.String("execution_id", executionID),
		zap.String("user_id", userID))

	return signed, expiresAt, nil
}

// Verify checks signature, expiry, and execution scope, and returns the
// embedded user id on success. A token issued for another execution is
// rejected even before it expires.
func (s *Service) Verify(executionID, tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.metrics.RecordTokenRejected("expired")
			return "", ErrTokenExpired
		}
		s.metrics.RecordTokenRejected("invalid")
		return "", ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		s.metrics.RecordTokenRejected("invalid")
		return "", ErrTokenInvalid
	}
	if claims.ExecutionID != executionID {
		s.metrics.RecordTokenRejected("scope_mismatch")
		return "", ErrExecutionMismatch
	}

	return claims.Subject, nil
}
