// Package config provides YAML-based configuration loading for shopfloor.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shopfloor configuration, loaded from shopfloor.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	API       APIConfig       `yaml:"api"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// DatabaseConfig holds connection settings. SQLite is the default; MySQL is
// available for shared deployments.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
}

// SchedulerConfig holds the knobs of the scheduling engine.
type SchedulerConfig struct {
	BaseTimeoutSecs   int      `yaml:"base_timeout_secs"`   // solver budget floor
	PerTaskTimeoutMs  int      `yaml:"per_task_timeout_ms"` // budget added per task
	HorizonBufferMins int      `yaml:"horizon_buffer_mins"` // slack on top of total work
	NonWorkingDays    []string `yaml:"non_working_days"`    // weekday names, e.g. "sunday"
	LatenessWeight    int      `yaml:"lateness_weight"`     // objective points per minute late
	Cron              string   `yaml:"cron"`                // optional 5-field expression for periodic passes
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig holds optional pass-completion notifier settings. An empty
// section disables the corresponding notifier.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig configures the Discord notifier.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with all defaults applied and no file involved.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
//
// The lateness weight default of 10 points per minute matches the historical
// penalty rate; the makespan term always carries weight 1, so the objective
// trades one minute of makespan against a tenth of a point per late minute.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "shopfloor.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "shopfloor"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Scheduler.BaseTimeoutSecs == 0 {
		c.Scheduler.BaseTimeoutSecs = 30
	}
	if c.Scheduler.PerTaskTimeoutMs == 0 {
		c.Scheduler.PerTaskTimeoutMs = 500
	}
	if c.Scheduler.HorizonBufferMins == 0 {
		c.Scheduler.HorizonBufferMins = 2880 // two days
	}
	if c.Scheduler.LatenessWeight == 0 {
		c.Scheduler.LatenessWeight = 10
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Scheduler.BaseTimeoutSecs < 0 {
		errs = append(errs, "scheduler.base_timeout_secs must not be negative")
	}
	if c.Scheduler.PerTaskTimeoutMs < 0 {
		errs = append(errs, "scheduler.per_task_timeout_ms must not be negative")
	}
	if c.Scheduler.LatenessWeight < 0 {
		errs = append(errs, "scheduler.lateness_weight must not be negative")
	}
	if _, err := c.Scheduler.NonWorkingWeekdays(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SolverBudget returns the wall-clock budget for a solve over taskCount tasks.
func (c *SchedulerConfig) SolverBudget(taskCount int) time.Duration {
	base := time.Duration(c.BaseTimeoutSecs) * time.Second
	per := time.Duration(c.PerTaskTimeoutMs) * time.Millisecond
	return base + time.Duration(taskCount)*per
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NonWorkingWeekdays parses the configured weekday names into a set.
func (c *SchedulerConfig) NonWorkingWeekdays() (map[time.Weekday]bool, error) {
	set := make(map[time.Weekday]bool, len(c.NonWorkingDays))
	for _, name := range c.NonWorkingDays {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("scheduler.non_working_days: unknown weekday %q", name)
		}
		set[wd] = true
	}
	return set, nil
}
