package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/hpungsan/unicorns/internal/errors"
)

// Environment variables read by FromEnv.
const (
	EnvAPIBaseURL = "UNICORNS_API_BASE_URL"
	EnvAPIID      = "UNICORNS_API_ID"
	EnvCollection = "UNICORNS_COLLECTION"
	EnvLogLevel   = "UNICORNS_LOG_LEVEL"
	EnvLogJSON    = "UNICORNS_LOG_JSON"
	EnvBind       = "UNICORNS_BIND"
	EnvPort       = "UNICORNS_PORT"
	EnvBackendDir = "UNICORNS_BACKEND_PATH"
)

// DefaultAPIBaseURL is the hosted CRUD service used when no base URL is configured.
const DefaultAPIBaseURL = "https://crudcrud.com"

// Config holds application configuration.
type Config struct {
	// APIBaseURL is the scheme and host of the CRUD backend.
	APIBaseURL string `json:"api_base_url,omitempty" validate:"required,http_url"`

	// APIID is the account identifier embedded in the collection path.
	APIID string `json:"api_id,omitempty" validate:"required"`

	// Collection is the resource name under the account, "unicorns" by default.
	Collection string `json:"collection,omitempty" validate:"required,excludesall=/?#"`

	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error disabled"`
	LogJSON  bool   `json:"log_json,omitempty"`

	// Bind and Port are the web UI listen address.
	Bind string `json:"bind,omitempty" validate:"required"`
	Port int    `json:"port,omitempty" validate:"min=1,max=65535"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// BackendPath is the data directory of the local dev backend.
	// Empty means ~/.unicorns/backend.
	BackendPath string `json:"backend_path,omitempty"`

	// Connection pool settings for the dev backend (0 = Go defaults).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" validate:"min=0"`
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" validate:"min=0"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: DefaultAPIBaseURL,
		Collection: "unicorns",
		LogLevel:   "info",
		Bind:       "127.0.0.1",
		Port:       8080,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.unicorns.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithEnv layers, lowest precedence first: defaults, baseDir/config.json,
// workDir/.env, then the process environment. Variables already set in the
// environment are never overridden by the .env file.
func LoadWithEnv(baseDir, workDir string) (*Config, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}

	dotenv, err := readDotEnv(workDir)
	if err != nil {
		return nil, err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	overlay, err := FromEnv(lookup)
	if err != nil {
		return nil, err
	}
	return Merge(cfg, overlay), nil
}

// readDotEnv reads workDir/.env. A missing file yields an empty map.
func readDotEnv(workDir string) (map[string]string, error) {
	if workDir == "" {
		return map[string]string{}, nil
	}
	env, err := godotenv.Read(filepath.Join(workDir, ".env"))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return env, nil
}

// FromEnv builds a config overlay from environment variables.
// Unset variables leave the matching field zero so Merge keeps the base value.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &Config{
		APIBaseURL:  strings.TrimRight(get(EnvAPIBaseURL), "/"),
		APIID:       get(EnvAPIID),
		Collection:  get(EnvCollection),
		LogLevel:    strings.ToLower(get(EnvLogLevel)),
		Bind:        get(EnvBind),
		BackendPath: get(EnvBackendDir),
	}

	if v := get(EnvLogJSON); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s must be a boolean", EnvLogJSON))
		}
		cfg.LogJSON = b
	}

	if v := get(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s must be an integer", EnvPort))
		}
		cfg.Port = port
	}

	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.APIBaseURL = firstNonEmpty(strings.TrimRight(overlay.APIBaseURL, "/"), base.APIBaseURL)
	result.APIID = firstNonEmpty(overlay.APIID, base.APIID)
	result.Collection = firstNonEmpty(overlay.Collection, base.Collection)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)
	result.Bind = firstNonEmpty(overlay.Bind, base.Bind)
	result.BackendPath = firstNonEmpty(overlay.BackendPath, base.BackendPath)

	result.Port = overlay.Port
	if result.Port == 0 {
		result.Port = base.Port
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}
	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.LogJSON = base.LogJSON || overlay.LogJSON

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldSources names where each validated field comes from, for error messages.
var fieldSources = map[string]string{
	"APIBaseURL": EnvAPIBaseURL,
	"APIID":      EnvAPIID,
	"Collection": EnvCollection,
	"LogLevel":   EnvLogLevel,
	"Bind":       EnvBind,
	"Port":       EnvPort,
}

// Validate checks that the config can reach a collection endpoint.
// The first failing field is reported as an INVALID_REQUEST error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.NewInternal(err)
	}

	fe := verrs[0]
	name := fieldSources[fe.StructField()]
	if name == "" {
		name = fe.StructField()
	}

	switch fe.Tag() {
	case "required":
		return errors.NewInvalidRequest(fmt.Sprintf("%s is required", name))
	case "http_url":
		return errors.NewInvalidRequest(fmt.Sprintf("%s must be an http(s) URL, got %q", name, fe.Value()))
	case "oneof":
		return errors.NewInvalidRequest(fmt.Sprintf("%s must be one of: %s", name, fe.Param()))
	case "min", "max":
		if fe.StructField() == "Port" {
			return errors.NewInvalidRequest(fmt.Sprintf("%s must be between 1 and 65535", name))
		}
		return errors.NewInvalidRequest(fmt.Sprintf("%s must not be negative", name))
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("%s is invalid", name))
	}
}

// Endpoint returns the collection URL, e.g. https://crudcrud.com/api/<id>/unicorns.
func (c *Config) Endpoint() string {
	return fmt.Sprintf("%s/api/%s/%s", strings.TrimRight(c.APIBaseURL, "/"), c.APIID, c.Collection)
}

// Addr returns the web UI listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
