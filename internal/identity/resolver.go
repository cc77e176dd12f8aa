// Package identity resolves connection credentials into board actors.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/pixelboard/internal/domain"
)

// Claims carried by access tokens issued by the login service.
type Claims struct {
	Email  string `json:"email,omitempty"`
	Status string `json:"status,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Option func(*Resolver)

// WithUserReader re-reads the user's role and moderation status on every connect instead of
// trusting the token claims.
func WithUserReader(r domain.UserReader) Option {
	return func(res *Resolver) { res.users = r }
}

// Resolver verifies HS256 bearer tokens and falls back to anonymous identities.
type Resolver struct {
	secret []byte
	users  domain.UserReader
	parser *jwt.Parser
}

var _ domain.IdentityResolver = (*Resolver)(nil)

func NewResolver(secret []byte, clock clockwork.Clock, opts ...Option) *Resolver {
	r := &Resolver{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, creds domain.Credentials) (domain.ResolvedIdentity, error) {
	if creds.Token == "" {
		return resolveAnonymous(creds.AnonID), nil
	}

	claims, err := r.verify(creds.Token)
	if err != nil {
		return domain.ResolvedIdentity{}, err
	}

	role, status := domain.ParseRole(claims.Role), domain.UserStatus(claims.Status)
	if r.users != nil {
		user, err := r.users.GetByID(ctx, claims.Subject)
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ResolvedIdentity{}, fmt.Errorf("%w: unknown user %s", domain.ErrInvalidCredentials, claims.Subject)
		}
		if err != nil {
			return domain.ResolvedIdentity{}, fmt.Errorf("read user %s: %w", claims.Subject, err)
		}
		role, status = user.Role, user.Status
	}

	return domain.ResolvedIdentity{
		Actor:  domain.NewAuthenticatedActor(claims.Subject),
		Role:   role,
		Banned: status == domain.UserStatusBanned,
	}, nil
}

// verify collapses every token problem into ErrInvalidCredentials.
func (r *Resolver) verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := r.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrInvalidCredentials)
	}
	return claims, nil
}

// resolveAnonymous keeps a well-formed client anon id and issues a fresh one otherwise.
func resolveAnonymous(anonID string) domain.ResolvedIdentity {
	if id, err := uuid.Parse(anonID); err == nil {
		return domain.ResolvedIdentity{Actor: domain.NewAnonymousActor(id.String()), Role: domain.RoleUser}
	}
	return domain.ResolvedIdentity{
		Actor:      domain.NewAnonymousActor(uuid.NewString()),
		Role:       domain.RoleUser,
		AnonIssued: true,
	}
}
