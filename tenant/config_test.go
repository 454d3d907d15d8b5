package tenant

import (
	"testing"

	"github.com/kbukum/tenantgate/logger"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()

	if c.Mode != ModeStatic {
		t.Errorf("expected static mode, got %s", c.Mode)
	}
	if c.Redis.HashKey != "tenantgate:apikeys" {
		t.Errorf("expected default hash key, got %s", c.Redis.HashKey)
	}
	if c.Redis.CacheTTL != "30s" {
		t.Errorf("expected default cache TTL, got %s", c.Redis.CacheTTL)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			"static with plain keys",
			Config{Mode: ModeStatic, Static: StaticConfig{PlainKeys: map[string]string{"sk": "free"}}},
			false,
		},
		{
			"static without keys",
			Config{Mode: ModeStatic},
			true,
		},
		{
			"static with bad tier",
			Config{Mode: ModeStatic, Static: StaticConfig{PlainKeys: map[string]string{"sk": "gold"}}},
			true,
		},
		{
			"static with empty hash",
			Config{Mode: ModeStatic, Static: StaticConfig{Keys: []StaticKey{{Tier: "free"}}}},
			true,
		},
		{
			"jwt with secret",
			Config{Mode: ModeJWT, JWT: JWTConfig{Secret: "s3cret"}},
			false,
		},
		{
			"jwt without secret",
			Config{Mode: ModeJWT},
			true,
		},
		{
			"redis with defaults",
			Config{Mode: ModeRedis, Redis: RedisConfig{HashKey: "apikeys", CacheTTL: "30s"}},
			false,
		},
		{
			"redis with bad ttl",
			Config{Mode: ModeRedis, Redis: RedisConfig{HashKey: "apikeys", CacheTTL: "soon"}},
			true,
		},
		{
			"unknown mode",
			Config{Mode: "ldap"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestNew_SelectsResolverByMode(t *testing.T) {
	log := logger.NewDefault("tenant-test")

	r, err := New(Config{
		Mode:   ModeStatic,
		Static: StaticConfig{PlainKeys: map[string]string{"sk": "free"}},
	}, nil, log)
	if err != nil {
		t.Fatalf("static New failed: %v", err)
	}
	if _, ok := r.(*StaticResolver); !ok {
		t.Errorf("expected *StaticResolver, got %T", r)
	}

	r, err = New(Config{Mode: ModeJWT, JWT: JWTConfig{Secret: "s3cret"}}, nil, log)
	if err != nil {
		t.Fatalf("jwt New failed: %v", err)
	}
	if _, ok := r.(*JWTResolver); !ok {
		t.Errorf("expected *JWTResolver, got %T", r)
	}

	if _, err := New(Config{Mode: ModeRedis}, nil, log); err == nil {
		t.Error("expected error for redis mode without client")
	}

	if _, err := New(Config{Mode: "ldap"}, nil, log); err == nil {
		t.Error("expected error for unknown mode")
	}
}
