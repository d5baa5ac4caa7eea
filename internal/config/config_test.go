package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/proof"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "1234", cfg.Proof.DLPID)
	assert.Equal(t, "/input", cfg.Proof.InputDir)
	assert.Equal(t, "/output", cfg.Proof.OutputDir)
	assert.Equal(t, 30, cfg.Server.RateLimitPerMin)
	assert.Equal(t, 15*time.Minute, cfg.Server.CacheTTL.Duration)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, proof.IntDLPID(1234), cfg.ProofDLPID())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(mapLookup(map[string]string{
		"DLP_ID":             "dlp-7",
		"INPUT_DIR":          "/tmp/in",
		"OUTPUT_DIR":         "/tmp/out",
		"USER_EMAIL":         "user@example.com",
		"ALLOWED_ORIGINS":    "https://a.example, https://b.example,",
		"RATE_LIMIT_PER_MIN": "5",
		"MAX_UPLOAD_BYTES":   "1024",
		"CACHE_TTL":          "90s",
		"RETENTION_DAYS":     "0",
		"PORT":               "",
	}))
	require.NoError(t, err)

	assert.Equal(t, proof.StringDLPID("dlp-7"), cfg.ProofDLPID())
	assert.Equal(t, "/tmp/in", cfg.Proof.InputDir)
	assert.Equal(t, "/tmp/out", cfg.Proof.OutputDir)
	assert.Equal(t, "user@example.com", cfg.Proof.UserEmail)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5, cfg.Server.RateLimitPerMin)
	assert.Equal(t, int64(1024), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 90*time.Second, cfg.Server.CacheTTL.Duration)
	assert.Equal(t, 0, cfg.Storage.RetentionDays)
	assert.Equal(t, "8080", cfg.Server.Port, "empty values keep the default")

	gen := cfg.GeneratorConfig()
	assert.Equal(t, "/tmp/in", gen.InputDir)
	assert.Equal(t, proof.StringDLPID("dlp-7"), gen.DLPID)
}

func TestApplyEnvRejectsMalformedNumbers(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "rate limit", env: map[string]string{"RATE_LIMIT_PER_MIN": "many"}},
		{name: "upload size", env: map[string]string{"MAX_UPLOAD_BYTES": "1MB"}},
		{name: "cache ttl", env: map[string]string{"CACHE_TTL": "soon"}},
		{name: "retention", env: map[string]string{"RETENTION_DAYS": "1.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Default().applyEnv(mapLookup(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proof.toml")
	content := `
log_level = "debug"

[proof]
dlp_id = "99"
input_dir = "/data/in"

[server]
rate_limit_per_min = 120
cache_ttl = "5m"
allowed_origins = ["https://app.example"]

[redis]
url = "localhost:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, proof.IntDLPID(99), cfg.ProofDLPID())
	assert.Equal(t, "/data/in", cfg.Proof.InputDir)
	assert.Equal(t, "/output", cfg.Proof.OutputDir, "unset keys keep their defaults")
	assert.Equal(t, 120, cfg.Server.RateLimitPerMin)
	assert.Equal(t, 5*time.Minute, cfg.Server.CacheTTL.Duration)
	assert.Equal(t, []string{"https://app.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.Redis.URL)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[proof\ndlp_id = 1"), 0644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proof.toml")
	require.NoError(t, os.WriteFile(path, []byte("[proof]\ndlp_id = \"1\"\ninput_dir = \"/from/file\"\n"), 0644))

	t.Setenv("PROOF_CONFIG", path)
	t.Setenv("DLP_ID", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, proof.IntDLPID(2), cfg.ProofDLPID())
	assert.Equal(t, "/from/file", cfg.Proof.InputDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty dlp id", mutate: func(c *Config) { c.Proof.DLPID = " " }},
		{name: "empty input dir", mutate: func(c *Config) { c.Proof.InputDir = "" }},
		{name: "empty output dir", mutate: func(c *Config) { c.Proof.OutputDir = "" }},
		{name: "zero rate limit", mutate: func(c *Config) { c.Server.RateLimitPerMin = 0 }},
		{name: "negative upload size", mutate: func(c *Config) { c.Server.MaxUploadBytes = -1 }},
		{name: "negative retention", mutate: func(c *Config) { c.Storage.RetentionDays = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
