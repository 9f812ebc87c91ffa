// Package identity resolves the caller of a request to an authenticated user
// or to a guest.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the access token payload issued by the retail backend.
type Claims struct {
	UserID int64       `json:"id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// ProfileSource fetches the profile of the user whose token is in ctx.
type ProfileSource interface {
	Profile(ctx context.Context) (*domain.User, error)
}

type Provider struct {
	secret   []byte
	profiles ProfileSource
	queries  *cache.Queries
	log      *slog.Logger
}

// NewProvider returns a Provider. An empty secret skips local token
// verification and lets the backend decide on every resolve.
func NewProvider(secret string, profiles ProfileSource, queries *cache.Queries, log *slog.Logger) *Provider {
	return &Provider{
		secret:   []byte(secret),
		profiles: profiles,
		queries:  queries,
		log:      log,
	}
}

// Verify parses and validates an HS256 access token.
func (p *Provider) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return p.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Resolve returns the user behind token, or nil for a guest. Profiles are
// served from the query cache for the cache window.
func (p *Provider) Resolve(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, nil
	}
	ctx = backend.WithCredentials(ctx, token, RequestIDFromContext(ctx))

	if len(p.secret) == 0 {
		return guestIfUnauthorized(p.fetchProfile(ctx))
	}

	claims, err := p.Verify(token)
	if err != nil {
		p.log.DebugContext(ctx, "treating request as guest", "error", err)
		return nil, nil
	}

	return guestIfUnauthorized(cache.Fetch(ctx, p.queries, cache.ProfileKey(claims.UserID), p.fetchProfile))
}

func (p *Provider) fetchProfile(ctx context.Context) (*domain.User, error) {
	user, err := p.profiles.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return user, nil
}

// guestIfUnauthorized turns a rejected token into a guest caller.
func guestIfUnauthorized(user *domain.User, err error) (*domain.User, error) {
	if err != nil {
		if backend.IsUnauthorized(err) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// Refresh drops the cached profile of the token's user and resolves it again.
func (p *Provider) Refresh(ctx context.Context, token string) (*domain.User, error) {
	if len(p.secret) > 0 {
		if claims, err := p.Verify(token); err == nil {
			p.queries.Invalidate(ctx, cache.ProfileKey(claims.UserID))
		}
	}
	return p.Resolve(ctx, token)
}

// Clear forgets everything cached on behalf of userID.
func (p *Provider) Clear(ctx context.Context, userID int64) {
	p.queries.Invalidate(ctx,
		cache.ProfileKey(userID),
		cache.UserCartKey(userID),
		cache.AddressesKey(userID),
		cache.SavedVouchersKey(userID),
	)
}

// TokenFromRequest picks the bearer token from the Authorization header value
// or, failing that, from the access token cookie value.
func TokenFromRequest(authHeader, cookie string) string {
	const bearerPrefix = "Bearer "
	if strings.HasPrefix(authHeader, bearerPrefix) {
		if t := strings.TrimSpace(authHeader[len(bearerPrefix):]); t != "" {
			return t
		}
	}
	return cookie
}

// IssueToken signs claims for userID. Used by tests and local tooling; the
// retail backend issues production tokens.
func IssueToken(secret string, userID int64, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
