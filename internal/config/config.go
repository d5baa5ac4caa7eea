package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/proof"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultDLPID is used when no pool identifier is configured
const DefaultDLPID = 1234

type ProofConfig struct {
	DLPID     string `toml:"dlp_id"`
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	UserEmail string `toml:"user_email"`
}

type StorageConfig struct {
	DataDir       string `toml:"data_dir"`
	RetentionDays int    `toml:"retention_days"`
}

type ServerConfig struct {
	Port            string   `toml:"port"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	JWTSecret       string   `toml:"jwt_secret"`
	RateLimitPerMin int      `toml:"rate_limit_per_min"`
	MaxUploadBytes  int64    `toml:"max_upload_bytes"`
	CacheTTL        Duration `toml:"cache_ttl"`
}

type RedisConfig struct {
	URL      string `toml:"url"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type Config struct {
	LogLevel string        `toml:"log_level"`
	Proof    ProofConfig   `toml:"proof"`
	Storage  StorageConfig `toml:"storage"`
	Server   ServerConfig  `toml:"server"`
	Redis    RedisConfig   `toml:"redis"`
}

// Duration reads Go duration strings such as "15m" from TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the settings the proof job runs with when nothing is configured
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Proof: ProofConfig{
			DLPID:     strconv.Itoa(DefaultDLPID),
			InputDir:  "/input",
			OutputDir: "/output",
		},
		Storage: StorageConfig{
			DataDir:       "./data",
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Port:            "8080",
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMin: 30,
			MaxUploadBytes:  32 << 20,
			CacheTTL:        Duration{15 * time.Minute},
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// PROOF_CONFIG, a .env file if present, and finally the process environment.
func Load() (*Config, error) {
	// A missing .env file is normal inside the proof container
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("PROOF_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a TOML file over the defaults without consulting the environment
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("LOG_LEVEL", &c.LogLevel)
	setString("DLP_ID", &c.Proof.DLPID)
	setString("INPUT_DIR", &c.Proof.InputDir)
	setString("OUTPUT_DIR", &c.Proof.OutputDir)
	setString("USER_EMAIL", &c.Proof.UserEmail)
	setString("DATA_DIR", &c.Storage.DataDir)
	setString("PORT", &c.Server.Port)
	setString("JWT_SECRET", &c.Server.JWTSecret)
	setString("REDIS_URL", &c.Redis.URL)
	setString("REDIS_PASSWORD", &c.Redis.Password)

	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	if err := setInt("RETENTION_DAYS", &c.Storage.RetentionDays); err != nil {
		return err
	}
	if err := setInt("RATE_LIMIT_PER_MIN", &c.Server.RateLimitPerMin); err != nil {
		return err
	}
	if err := setInt("REDIS_DB", &c.Redis.DB); err != nil {
		return err
	}

	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES must be an integer: %w", err)
		}
		c.Server.MaxUploadBytes = n
	}

	if v, ok := lookup("CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL must be a duration: %w", err)
		}
		c.Server.CacheTTL = Duration{d}
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects settings no run can work with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Proof.DLPID) == "" {
		return fmt.Errorf("dlp_id must not be empty")
	}
	if c.Proof.InputDir == "" {
		return fmt.Errorf("input_dir must not be empty")
	}
	if c.Proof.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.Server.RateLimitPerMin <= 0 {
		return fmt.Errorf("rate_limit_per_min must be positive, got %d", c.Server.RateLimitPerMin)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative, got %d", c.Storage.RetentionDays)
	}
	return nil
}

// ProofDLPID returns the configured pool identifier
func (c *Config) ProofDLPID() proof.DLPID {
	return proof.ParseDLPID(c.Proof.DLPID)
}

// GeneratorConfig returns the inputs of a proof run over the configured input directory
func (c *Config) GeneratorConfig() proof.Config {
	return proof.Config{
		InputDir: c.Proof.InputDir,
		DLPID:    c.ProofDLPID(),
	}
}
