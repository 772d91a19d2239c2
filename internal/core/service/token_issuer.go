package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/storefront/identity-service/internal/api/metrics"
	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

// TokenConfig holds the signing parameters. It is copied into the issuer on
// construction and never changes afterwards.
type TokenConfig struct {
	SecurityKey string
	Issuer      string
	Audience    string
	ExpiryDays  int
}

func (c TokenConfig) validate() error {
	var missing []string
	if c.SecurityKey == "" {
		missing = append(missing, "security key is empty")
	}
	if c.Issuer == "" {
		missing = append(missing, "issuer is empty")
	}
	if c.Audience == "" {
		missing = append(missing, "audience is empty")
	}
	if c.ExpiryDays <= 0 {
		missing = append(missing, "expiry days must be positive")
	}
	if len(missing) > 0 {
		return domain.NewValidationError(missing...)
	}
	return nil
}

// sessionClaims is the payload of a session token. The role claim is always
// encoded as an array.
type sessionClaims struct {
	Name           string           `json:"name"`
	NameIdentifier string           `json:"nameid"`
	Roles          jwt.ClaimStrings `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 session tokens carrying the user's identity and
// current roles, and verifies tokens it produced.
type TokenIssuer struct {
	store  ports.CredentialStore
	cfg    TokenConfig
	key    []byte
	now    func() time.Time
	logger zerolog.Logger
}

func NewTokenIssuer(store ports.CredentialStore, cfg TokenConfig, logger zerolog.Logger) (*TokenIssuer, error) {
	if err := cfg.validate(); err != nil {
		metrics.TokenErrorsTotal.WithLabelValues(domain.TokenConfigInvalid.String()).Inc()
		return nil, &domain.TokenError{Kind: domain.TokenConfigInvalid, Err: err}
	}
	return &TokenIssuer{
		store:  store,
		cfg:    cfg,
		key:    []byte(cfg.SecurityKey),
		now:    time.Now,
		logger: logger,
	}, nil
}

// IssueToken returns a signed token for username. The role claim reflects
// the roles held at the moment of the call.
func (s *TokenIssuer) IssueToken(ctx context.Context, username string) (domain.Token, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Token{}, s.fail(domain.TokenUserNotFound, username, &domain.UserNotFoundError{Username: username})
		}
		return domain.Token{}, s.fail(domain.TokenStoreFailure, username, err)
	}

	roles, err := s.store.GetRoles(ctx, user.ID)
	if err != nil {
		return domain.Token{}, s.fail(domain.TokenStoreFailure, username, err)
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.AddDate(0, 0, s.cfg.ExpiryDays)

	claims := sessionClaims{
		Name:           user.Username,
		NameIdentifier: user.ID,
		Roles:          jwt.ClaimStrings(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return domain.Token{}, s.fail(domain.TokenSigningFailure, username, err)
	}

	metrics.TokensIssuedTotal.Inc()
	s.logger.Debug().Str("username", user.Username).Strs("roles", roles).Time("expires_at", expiresAt).Msg("token issued")

	return domain.Token{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry, and returns
// the identity the token asserts.
func (s *TokenIssuer) Verify(tokenString string) (*domain.Principal, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	if !parsed.Valid || claims.Name == "" {
		return nil, domain.ErrInvalidCredentials
	}

	return &domain.Principal{
		UserID:   claims.NameIdentifier,
		Username: claims.Name,
		Roles:    []string(claims.Roles),
	}, nil
}

func (s *TokenIssuer) fail(kind domain.TokenErrorKind, username string, cause error) error {
	metrics.TokenErrorsTotal.WithLabelValues(kind.String()).Inc()
	if kind != domain.TokenUserNotFound {
		s.logger.Error().Err(cause).Str("username", username).Str("kind", kind.String()).Msg("token generation failed")
	}
	return &domain.TokenError{Kind: kind, Username: username, Err: cause}
}
