package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Store manages the runtime configuration for the CRM.
type Store struct {
	path   string
	Config Data
}

// Data represents persisted user preferences.
type Data struct {
	Name       string     `mapstructure:"name" validate:"required"`
	Role       string     `mapstructure:"role"`
	Timezone   string     `mapstructure:"timezone"`
	DBPath     string     `mapstructure:"db_path"`
	LogPath    string     `mapstructure:"log_path"`
	Conference Conference `mapstructure:"conference"`
}

// Conference holds the remote conferencing collaborator settings.
type Conference struct {
	Endpoint string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

var validate = validator.New()

// Load reads the config file, creating defaults on first run.
// An explicit path overrides the default location under the user config dir.
func Load(path string) (*Store, error) {
	cfgPath := path
	if cfgPath == "" {
		resolved, err := resolvePath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	v := viper.New()
	v.SetConfigFile(cfgPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("pipeterm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("name", defaultName())
	v.SetDefault("role", string(RoleMember))
	v.SetDefault("timezone", defaultTimezone())
	v.SetDefault("conference.timeout", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
		if err := v.SafeWriteConfigAs(cfgPath); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	var cfg Data
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone()
	}
	if cfg.Name == "" {
		cfg.Name = defaultName()
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{path: cfgPath, Config: cfg}, nil
}

// Save writes the current config values to disk.
func (s *Store) Save() error {
	if s == nil {
		return errors.New("nil config store")
	}
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	v.Set("name", s.Config.Name)
	v.Set("role", s.Config.Role)
	v.Set("timezone", s.Config.Timezone)
	v.Set("db_path", s.Config.DBPath)
	v.Set("log_path", s.Config.LogPath)
	v.Set("conference.endpoint", s.Config.Conference.Endpoint)
	v.Set("conference.timeout", s.Config.Conference.Timeout.String())
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func resolvePath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.Getenv("HOME")
		if base == "" {
			return "", fmt.Errorf("cannot resolve config directory: %w", err)
		}
	}
	dir := filepath.Join(base, "pipeterm")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func defaultName() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if runtime.GOOS == "windows" {
		if name := os.Getenv("USERNAME"); name != "" {
			return name
		}
	}
	return "CRM User"
}

func defaultTimezone() string {
	if locName := time.Now().Location().String(); locName != "Local" && locName != "" {
		return locName
	}
	return "UTC"
}

// Location returns the configured timezone Location, defaulting to UTC on error.
func (s *Store) Location() *time.Location {
	if s == nil {
		return time.UTC
	}
	if loc, err := time.LoadLocation(s.Config.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// UserRole returns the configured role, falling back to member for any
// unrecognized value.
func (s *Store) UserRole() Role {
	if s == nil {
		return RoleMember
	}
	return ParseRole(s.Config.Role)
}
