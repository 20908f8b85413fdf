package appconf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"planner.onebusaway.org/internal/utils"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	}
	return "development"
}

// EnvFlagToEnvironment maps a command line value to an Environment.
// Unknown values fall back to Development.
func EnvFlagToEnvironment(env string) Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "test":
		return Test
	case "production", "prod":
		return Production
	}
	return Development
}

// Duration reads Go ("90s"), ISO-8601 ("PT90S") or bare-second values.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := utils.ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	Env       Environment   `yaml:"-"`
	EnvName   string        `yaml:"env" validate:"oneof=development test production"`
	Port      int           `yaml:"port" validate:"gt=0,lte=65535"`
	ApiKeys   []string      `yaml:"api_keys" validate:"min=1,dive,required"`
	RateLimit int           `yaml:"rate_limit" validate:"gte=0"`
	LogLevel  string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	Gtfs      GtfsConfig    `yaml:"gtfs"`
	Planner   PlannerConfig `yaml:"planner"`
	Cache     CacheConfig   `yaml:"cache"`
}

type GtfsConfig struct {
	StaticURL       string   `yaml:"static_url" validate:"required"`
	TripUpdatesURLs []string `yaml:"trip_updates_urls" validate:"dive,url"`
	AuthHeaderKey   string   `yaml:"auth_header_key"`
	AuthHeaderValue string   `yaml:"auth_header_value"`
	ReloadInterval  Duration `yaml:"reload_interval" validate:"gte=0"`
	// RealtimeInterval of zero disables periodic trip update polling.
	RealtimeInterval Duration `yaml:"realtime_interval" validate:"gte=0"`
	// Days caps the production period; zero derives it from the calendar.
	Days            int      `yaml:"days" validate:"gte=0,lte=3660"`
	WalkingSpeed    float64  `yaml:"walking_speed" validate:"gt=0"`
	ProximityRadius float64  `yaml:"proximity_radius" validate:"gte=0"`
	DefaultTransfer Duration `yaml:"default_transfer" validate:"gte=0"`
}

type PlannerConfig struct {
	MaxTransfers  int      `yaml:"max_transfers" validate:"gte=0"`
	MaxDuration   Duration `yaml:"max_duration" validate:"gte=0"`
	SearchTimeout Duration `yaml:"search_timeout" validate:"gt=0"`
	MaxRounds     int      `yaml:"max_rounds" validate:"gte=0"`
	MaxBatch      int      `yaml:"max_batch" validate:"gt=0,lte=100"`
}

// CacheConfig enables the journey cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string   `yaml:"redis_addr" validate:"omitempty,hostname_port"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db" validate:"gte=0"`
	TTL       Duration `yaml:"ttl" validate:"gte=0"`
}

func (c CacheConfig) Enabled() bool { return c.RedisAddr != "" }

func Default() Config {
	return Config{
		Env:       Development,
		EnvName:   Development.String(),
		Port:      4000,
		ApiKeys:   []string{"test"},
		RateLimit: 100,
		LogLevel:  "info",
		Gtfs: GtfsConfig{
			ReloadInterval:   Duration(24 * time.Hour),
			RealtimeInterval: Duration(30 * time.Second),
			WalkingSpeed:     1.12,
			ProximityRadius:  300,
			DefaultTransfer:  Duration(2 * time.Minute),
		},
		Planner: PlannerConfig{
			MaxTransfers:  10,
			SearchTimeout: Duration(5 * time.Second),
			MaxBatch:      20,
		},
		Cache: CacheConfig{TTL: Duration(time.Minute)},
	}
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Env = EnvFlagToEnvironment(cfg.EnvName)
	return nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// EnvPrefix namespaces the environment variables read by ApplyEnv.
const EnvPrefix = "PLANNER_"

// ApplyEnv overlays PLANNER_* variables found through lookup onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	duration := func(name string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := utils.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = Duration(d)
		}
	}

	str("ENV", &cfg.EnvName)
	integer("PORT", &cfg.Port)
	if v, ok := lookup(EnvPrefix + "API_KEYS"); ok {
		cfg.ApiKeys = SplitList(v)
	}
	integer("RATE_LIMIT", &cfg.RateLimit)
	str("LOG_LEVEL", &cfg.LogLevel)

	str("GTFS_STATIC_URL", &cfg.Gtfs.StaticURL)
	if v, ok := lookup(EnvPrefix + "GTFS_TRIP_UPDATES_URLS"); ok {
		cfg.Gtfs.TripUpdatesURLs = SplitList(v)
	}
	str("GTFS_AUTH_HEADER_KEY", &cfg.Gtfs.AuthHeaderKey)
	str("GTFS_AUTH_HEADER_VALUE", &cfg.Gtfs.AuthHeaderValue)
	duration("GTFS_RELOAD_INTERVAL", &cfg.Gtfs.ReloadInterval)
	duration("GTFS_REALTIME_INTERVAL", &cfg.Gtfs.RealtimeInterval)
	integer("GTFS_DAYS", &cfg.Gtfs.Days)
	float("GTFS_WALKING_SPEED", &cfg.Gtfs.WalkingSpeed)
	float("GTFS_PROXIMITY_RADIUS", &cfg.Gtfs.ProximityRadius)
	duration("GTFS_DEFAULT_TRANSFER", &cfg.Gtfs.DefaultTransfer)

	integer("MAX_TRANSFERS", &cfg.Planner.MaxTransfers)
	duration("MAX_DURATION", &cfg.Planner.MaxDuration)
	duration("SEARCH_TIMEOUT", &cfg.Planner.SearchTimeout)
	integer("MAX_ROUNDS", &cfg.Planner.MaxRounds)
	integer("MAX_BATCH", &cfg.Planner.MaxBatch)

	str("REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Cache.Password)
	integer("REDIS_DB", &cfg.Cache.DB)
	duration("CACHE_TTL", &cfg.Cache.TTL)

	cfg.Env = EnvFlagToEnvironment(cfg.EnvName)
	return errors.Join(errs...)
}

// SplitList splits a comma separated flag or variable, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every invalid field together.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
