package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARBOR_"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Duration is a time.Duration written as a string ("30s", "720h") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the configuration of an Arbor process.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Store        StoreConfig        `yaml:"store"`
	Auth         AuthConfig         `yaml:"auth"`
	Provider     ProviderConfig     `yaml:"provider"`
	Forms        FormsConfig        `yaml:"forms"`
	Autosave     AutosaveConfig     `yaml:"autosave"`
	Availability AvailabilityConfig `yaml:"availability"`
	Schedule     ScheduleConfig     `yaml:"schedule"`

	// Organizations are saved to the organisation store at startup.
	Organizations []OrganizationConfig `yaml:"organizations"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	CORSOrigins     []string `yaml:"cors_origins"`
	ValidateOpenAPI bool     `yaml:"validate_openapi"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	File     FileConfig     `yaml:"file"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Badger   BadgerConfig   `yaml:"badger"`
}

type FileConfig struct {
	Dir string `yaml:"dir"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	// Lock enables the distributed form lock, which needs Addr even when
	// forms live in another backend.
	Lock    bool     `yaml:"lock"`
	LockTTL Duration `yaml:"lock_ttl"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type BadgerConfig struct {
	Path       string `yaml:"path"`
	SyncWrites bool   `yaml:"sync_writes"`
}

type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type ProviderConfig struct {
	BaseURL           string   `yaml:"base_url"`
	TokenURL          string   `yaml:"token_url"`
	ClientID          string   `yaml:"client_id"`
	ClientSecret      string   `yaml:"client_secret"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	MaxAttempts       int      `yaml:"max_attempts"`
	Timeout           Duration `yaml:"timeout"`
}

// Enabled reports whether a provider is configured.
func (p ProviderConfig) Enabled() bool {
	return p.BaseURL != ""
}

type FormsConfig struct {
	TemplatesDir  string   `yaml:"templates_dir"`
	RestoreWindow Duration `yaml:"restore_window"`
}

type AutosaveConfig struct {
	Debounce   Duration `yaml:"debounce"`
	MaxRetries int      `yaml:"max_retries"`
}

type AvailabilityConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type ScheduleConfig struct {
	// Organizations whose employees are synchronised by the scheduler.
	Organizations []string `yaml:"organizations"`
	EmployeeSync  string   `yaml:"employee_sync"`
	Purge         string   `yaml:"purge"`
}

type OrganizationConfig struct {
	ID            string                        `yaml:"id"`
	Name          string                        `yaml:"name"`
	Timezone      string                        `yaml:"timezone"`
	BusinessHours map[string][]domain.TimeRange `yaml:"business_hours"`
	ClosedDates   []string                      `yaml:"closed_dates"`
}

// Organization converts the entry to a domain record.
func (o OrganizationConfig) Organization() domain.Organization {
	return domain.Organization{
		ID:            o.ID,
		Name:          o.Name,
		Timezone:      o.Timezone,
		BusinessHours: domain.BusinessHours(o.BusinessHours),
		ClosedDates:   o.ClosedDates,
	}
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Backend: BackendMemory,
			File:    FileConfig{Dir: ".arbor/forms"},
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "arbor:", LockTTL: Duration(30 * time.Second)},
			Badger:  BadgerConfig{Path: ".arbor/badger"},
		},
		Provider: ProviderConfig{
			RequestsPerSecond: 5,
			MaxAttempts:       4,
			Timeout:           Duration(15 * time.Second),
		},
		Forms: FormsConfig{
			TemplatesDir:  "templates",
			RestoreWindow: Duration(30 * 24 * time.Hour),
		},
		Autosave: AutosaveConfig{
			Debounce:   Duration(time.Second),
			MaxRetries: 3,
		},
		Availability: AvailabilityConfig{Concurrency: 4},
		Schedule: ScheduleConfig{
			EmployeeSync: "@every 1h",
			Purge:        "@daily",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendBadger:
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Forms.RestoreWindow < 0 {
		errs = append(errs, errors.New("forms.restore_window must not be negative"))
	}
	if c.Provider.Enabled() && c.Provider.ClientID == "" {
		errs = append(errs, errors.New("provider.client_id is required when provider.base_url is set"))
	}
	for i, o := range c.Organizations {
		if o.ID == "" {
			errs = append(errs, fmt.Errorf("organizations[%d].id is required", i))
			continue
		}
		if _, err := o.Organization().Location(); err != nil {
			errs = append(errs, fmt.Errorf("organizations[%d]: %w", i, err))
		}
		for day, ranges := range o.BusinessHours {
			for _, r := range ranges {
				if _, _, err := r.Minutes(); err != nil {
					errs = append(errs, fmt.Errorf("organizations[%d].business_hours.%s: %w", i, day, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides fields from ARBOR_* variables.
func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"SERVER_ADDR":            &c.Server.Addr,
		"LOG_LEVEL":              &c.Log.Level,
		"LOG_FORMAT":             &c.Log.Format,
		"STORE_BACKEND":          &c.Store.Backend,
		"STORE_FILE_DIR":         &c.Store.File.Dir,
		"REDIS_ADDR":             &c.Store.Redis.Addr,
		"REDIS_PASSWORD":         &c.Store.Redis.Password,
		"REDIS_PREFIX":           &c.Store.Redis.Prefix,
		"POSTGRES_DSN":           &c.Store.Postgres.DSN,
		"BADGER_PATH":            &c.Store.Badger.Path,
		"AUTH_SECRET":            &c.Auth.Secret,
		"AUTH_ISSUER":            &c.Auth.Issuer,
		"PROVIDER_BASE_URL":      &c.Provider.BaseURL,
		"PROVIDER_TOKEN_URL":     &c.Provider.TokenURL,
		"PROVIDER_CLIENT_ID":     &c.Provider.ClientID,
		"PROVIDER_CLIENT_SECRET": &c.Provider.ClientSecret,
		"TEMPLATES_DIR":          &c.Forms.TemplatesDir,
		"SCHEDULE_EMPLOYEE_SYNC": &c.Schedule.EmployeeSync,
		"SCHEDULE_PURGE":         &c.Schedule.Purge,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	lists := map[string]*[]string{
		"CORS_ORIGINS":           &c.Server.CORSOrigins,
		"SCHEDULE_ORGANIZATIONS": &c.Schedule.Organizations,
	}
	for key, dst := range lists {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = splitList(v)
		}
	}

	var errs []error
	durations := map[string]*Duration{
		"RESTORE_WINDOW":    &c.Forms.RestoreWindow,
		"AUTOSAVE_DEBOUNCE": &c.Autosave.Debounce,
		"REDIS_LOCK_TTL":    &c.Store.Redis.LockTTL,
		"PROVIDER_TIMEOUT":  &c.Provider.Timeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				continue
			}
			*dst = Duration(d)
		}
	}

	ints := map[string]*int{
		"REDIS_DB":                 &c.Store.Redis.DB,
		"PROVIDER_MAX_ATTEMPTS":    &c.Provider.MaxAttempts,
		"AUTOSAVE_MAX_RETRIES":     &c.Autosave.MaxRetries,
		"AVAILABILITY_CONCURRENCY": &c.Availability.Concurrency,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				continue
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"REDIS_LOCK":         &c.Store.Redis.Lock,
		"VALIDATE_OPENAPI":   &c.Server.ValidateOpenAPI,
		"BADGER_SYNC_WRITES": &c.Store.Badger.SyncWrites,
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				continue
			}
			*dst = b
		}
	}

	if v, ok := lookup(EnvPrefix + "PROVIDER_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPROVIDER_RPS: %w", EnvPrefix, err))
		} else {
			c.Provider.RequestsPerSecond = f
		}
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
