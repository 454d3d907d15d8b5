package tenant

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/kbukum/tenantgate/isolation"
)

type staticEntry struct {
	hash []byte
	tier isolation.Tier
}

// StaticResolver checks the X-API-Key header against a configured key table.
// Production keys are stored as bcrypt hashes; a plain-key table is supported
// for local development.
type StaticResolver struct {
	entries   []staticEntry
	plainKeys map[string]isolation.Tier
}

// NewStaticResolver builds a resolver from the configured key table.
func NewStaticResolver(cfg StaticConfig) (*StaticResolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("static resolver: %w", err)
	}

	r := &StaticResolver{
		entries:   make([]staticEntry, 0, len(cfg.Keys)),
		plainKeys: make(map[string]isolation.Tier, len(cfg.PlainKeys)),
	}
	for _, k := range cfg.Keys {
		tier, _ := isolation.ParseTier(k.Tier)
		r.entries = append(r.entries, staticEntry{hash: []byte(k.Hash), tier: tier})
	}
	for key, tierName := range cfg.PlainKeys {
		tier, _ := isolation.ParseTier(tierName)
		r.plainKeys[key] = tier
	}
	return r, nil
}

// Resolve maps the request's API key to its tier. Missing and unknown keys
// are both ErrUnresolved.
func (r *StaticResolver) Resolve(_ context.Context, req *http.Request) (isolation.Tier, error) {
	key, err := apiKey(req)
	if err != nil {
		return "", err
	}

	if tier, ok := r.plainKeys[key]; ok {
		return tier, nil
	}
	for _, e := range r.entries {
		if bcrypt.CompareHashAndPassword(e.hash, []byte(key)) == nil {
			return e.tier, nil
		}
	}
	return "", fmt.Errorf("%w: unknown api key", ErrUnresolved)
}
