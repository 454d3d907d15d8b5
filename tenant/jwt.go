package tenant

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/tenantgate/isolation"
)

// TierClaims are the claims the jwt resolver reads: the registered set plus
// the tenant tier.
type TierClaims struct {
	gojwt.RegisteredClaims
	Tier string `json:"tier"`
}

// JWTResolver reads the tier from a Bearer token's tier claim. Tokens are
// HMAC-signed with a shared secret; signature, expiry, and (when configured)
// issuer are verified before the claim is trusted.
type JWTResolver struct {
	secret []byte
	opts   []gojwt.ParserOption
}

// NewJWTResolver builds a resolver from the verification settings.
func NewJWTResolver(cfg JWTConfig) (*JWTResolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("jwt resolver: %w", err)
	}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(cfg.Issuer))
	}
	return &JWTResolver{secret: []byte(cfg.Secret), opts: opts}, nil
}

// Resolve verifies the request's Bearer token and maps its tier claim to a
// tier. Any verification failure is ErrUnresolved.
func (r *JWTResolver) Resolve(_ context.Context, req *http.Request) (isolation.Tier, error) {
	authz := req.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnresolved)
	}

	claims := &TierClaims{}
	token, err := gojwt.ParseWithClaims(strings.TrimPrefix(authz, prefix), claims, r.keyFunc, r.opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrUnresolved)
	}

	tier, err := isolation.ParseTier(claims.Tier)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	return tier, nil
}

func (r *JWTResolver) keyFunc(token *gojwt.Token) (interface{}, error) {
	if token.Method.Alg() != gojwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
	}
	return r.secret, nil
}
