// Package auth verifies bearer tokens issued by the identity provider and
// carries the resulting identity through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/court-reservation/internal/apperror"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

// Claims is the token payload. The user id travels in the standard sub claim.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier for secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for id. The identity provider owns issuance in
// production; this exists for local tooling and tests.
func (v *Verifier) Issue(id model.Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns the identity it carries.
// A token without a role is a plain user.
func (v *Verifier) Verify(token string) (model.Identity, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return model.Identity{}, apperror.ErrUnauthenticated.Wrap(err)
	}
	if !t.Valid || claims.Subject == "" {
		return model.Identity{}, apperror.ErrUnauthenticated.Wrap(errors.New("token has no subject"))
	}

	role := claims.Role
	switch role {
	case "":
		role = model.RoleUser
	case model.RoleUser, model.RoleOwner, model.RoleAdmin:
	default:
		return model.Identity{}, apperror.ErrUnauthenticated.Wrap(fmt.Errorf("unknown role %q", role))
	}
	return model.Identity{UserID: claims.Subject, Role: role}, nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(model.Identity)
	return id, ok
}
