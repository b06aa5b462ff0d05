package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config captures configuration values for the planner service.
type Config struct {
	SQLiteDSN               string
	CalendarName            string
	SyncEnabled             bool
	GoogleCredentialsFile   string
	GoogleTokenFile         string
	ReconcileInterval       time.Duration
	PermissionPromptTimeout time.Duration
	PlanningHorizonDays     int
}

// fileConfig is the TOML representation. Durations are strings in
// time.ParseDuration syntax.
type fileConfig struct {
	SQLiteDSN               string `toml:"sqlite_dsn"`
	CalendarName            string `toml:"calendar_name"`
	SyncEnabled             *bool  `toml:"sync_enabled"`
	GoogleCredentialsFile   string `toml:"google_credentials_file"`
	GoogleTokenFile         string `toml:"google_token_file"`
	ReconcileInterval       string `toml:"reconcile_interval"`
	PermissionPromptTimeout string `toml:"permission_prompt_timeout"`
	PlanningHorizonDays     int    `toml:"planning_horizon_days"`
}

// Load builds the configuration from defaults, an optional TOML file named
// by PLANNER_CONFIG_FILE, and PLANNER_* environment overrides, in that
// order. All invalid entries are reported together.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN:               "file:planner.db",
		CalendarName:            "Momentum Planner",
		SyncEnabled:             false,
		ReconcileInterval:       5 * time.Minute,
		PermissionPromptTimeout: 90 * time.Second,
		PlanningHorizonDays:     28,
	}

	invalid := make([]string, 0, 2)

	if path := strings.TrimSpace(os.Getenv("PLANNER_CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path, &invalid); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg, &invalid)

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid values for: %s", strings.Join(invalid, ", "))
	}
	if cfg.SyncEnabled {
		missing := make([]string, 0, 2)
		if cfg.GoogleCredentialsFile == "" {
			missing = append(missing, "google_credentials_file")
		}
		if cfg.GoogleTokenFile == "" {
			missing = append(missing, "google_token_file")
		}
		if len(missing) > 0 {
			return Config{}, fmt.Errorf("config: sync is enabled but missing: %s", strings.Join(missing, ", "))
		}
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string, invalid *[]string) error {
	var file fileConfig
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if file.SQLiteDSN != "" {
		cfg.SQLiteDSN = file.SQLiteDSN
	}
	if file.CalendarName != "" {
		cfg.CalendarName = file.CalendarName
	}
	if file.SyncEnabled != nil {
		cfg.SyncEnabled = *file.SyncEnabled
	}
	if file.GoogleCredentialsFile != "" {
		cfg.GoogleCredentialsFile = file.GoogleCredentialsFile
	}
	if file.GoogleTokenFile != "" {
		cfg.GoogleTokenFile = file.GoogleTokenFile
	}
	if file.ReconcileInterval != "" {
		if d, err := time.ParseDuration(file.ReconcileInterval); err != nil || d <= 0 {
			*invalid = append(*invalid, "reconcile_interval")
		} else {
			cfg.ReconcileInterval = d
		}
	}
	if file.PermissionPromptTimeout != "" {
		if d, err := time.ParseDuration(file.PermissionPromptTimeout); err != nil || d <= 0 {
			*invalid = append(*invalid, "permission_prompt_timeout")
		} else {
			cfg.PermissionPromptTimeout = d
		}
	}
	if file.PlanningHorizonDays != 0 {
		if file.PlanningHorizonDays < 0 {
			*invalid = append(*invalid, "planning_horizon_days")
		} else {
			cfg.PlanningHorizonDays = file.PlanningHorizonDays
		}
	}
	return nil
}

func applyEnv(cfg *Config, invalid *[]string) {
	if dsn := strings.TrimSpace(os.Getenv("PLANNER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if name := strings.TrimSpace(os.Getenv("PLANNER_CALENDAR_NAME")); name != "" {
		cfg.CalendarName = name
	}
	if enabled := strings.TrimSpace(os.Getenv("PLANNER_SYNC_ENABLED")); enabled != "" {
		parsed, err := strconv.ParseBool(enabled)
		if err != nil {
			*invalid = append(*invalid, "PLANNER_SYNC_ENABLED")
		} else {
			cfg.SyncEnabled = parsed
		}
	}
	if path := strings.TrimSpace(os.Getenv("PLANNER_GOOGLE_CREDENTIALS_FILE")); path != "" {
		cfg.GoogleCredentialsFile = path
	}
	if path := strings.TrimSpace(os.Getenv("PLANNER_GOOGLE_TOKEN_FILE")); path != "" {
		cfg.GoogleTokenFile = path
	}
	if value := strings.TrimSpace(os.Getenv("PLANNER_RECONCILE_INTERVAL")); value != "" {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			*invalid = append(*invalid, "PLANNER_RECONCILE_INTERVAL")
		} else {
			cfg.ReconcileInterval = d
		}
	}
	if value := strings.TrimSpace(os.Getenv("PLANNER_PROMPT_TIMEOUT")); value != "" {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			*invalid = append(*invalid, "PLANNER_PROMPT_TIMEOUT")
		} else {
			cfg.PermissionPromptTimeout = d
		}
	}
	if value := strings.TrimSpace(os.Getenv("PLANNER_PLANNING_HORIZON_DAYS")); value != "" {
		if days, err := strconv.Atoi(value); err != nil || days <= 0 {
			*invalid = append(*invalid, "PLANNER_PLANNING_HORIZON_DAYS")
		} else {
			cfg.PlanningHorizonDays = days
		}
	}
}
