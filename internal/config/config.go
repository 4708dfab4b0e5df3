package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultDistractionSites is the blocklist used when none is configured.
var DefaultDistractionSites = []string{
	"youtube.com", "twitter.com", "facebook.com", "instagram.com",
	"tiktok.com", "reddit.com", "netflix.com", "twitch.tv",
}

type PomodoroConfig struct {
	FocusMinutes      int `mapstructure:"focus_minutes"`
	ShortBreakMinutes int `mapstructure:"short_break_minutes"`
	LongBreakMinutes  int `mapstructure:"long_break_minutes"`
	LongBreakInterval int `mapstructure:"long_break_interval"`
}

type ForestConfig struct {
	StageIntervalMinutes int `mapstructure:"stage_interval_minutes"`
	DistractionDamage    int `mapstructure:"distraction_damage"`
}

type BlockingConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	DistractionSites []string `mapstructure:"distraction_sites"`
	HostsPath        string   `mapstructure:"hosts_path"`
	RedirectAddress  string   `mapstructure:"redirect_address"`
}

type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Sound   bool `mapstructure:"sound"`
}

type AnalyticsConfig struct {
	HistoryRetentionDays  int `mapstructure:"history_retention_days"`
	MoodRetentionDays     int `mapstructure:"mood_retention_days"`
	InsightRefreshMinutes int `mapstructure:"insight_refresh_minutes"`
	ThemeRefreshMinutes   int `mapstructure:"theme_refresh_minutes"`
}

type Config struct {
	DatabasePath              string             `mapstructure:"database_path"`
	SocketPath                string             `mapstructure:"socket_path"`
	WatchWindows              bool               `mapstructure:"watch_windows"`
	CollectMode               string             `mapstructure:"collect_mode"` // "always" or "focus"
	CollectionIntervalSeconds int                `mapstructure:"collection_interval_seconds"`
	Pomodoro                  PomodoroConfig     `mapstructure:"pomodoro"`
	Forest                    ForestConfig       `mapstructure:"forest"`
	Blocking                  BlockingConfig     `mapstructure:"blocking"`
	Notifications             NotificationConfig `mapstructure:"notifications"`
	Analytics                 AnalyticsConfig    `mapstructure:"analytics"`
}

// loadDotEnv sets FOCUSFOREST_* variables from .env files that exist.
// Variables already present in the environment win.
func loadDotEnv() {
	for _, p := range []string{".env.local", ".env"} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Printf("Warning: failed to load %s: %v", p, err)
		} else {
			log.Printf("Loaded environment from %s", p)
		}
	}
}

func setDefaults() {
	viper.SetDefault("database_path", "focusforest.db")
	viper.SetDefault("socket_path", "/tmp/focusforest.sock")
	viper.SetDefault("watch_windows", true)
	viper.SetDefault("collect_mode", "focus")
	viper.SetDefault("collection_interval_seconds", 2)
	viper.SetDefault("pomodoro.focus_minutes", 25)
	viper.SetDefault("pomodoro.short_break_minutes", 5)
	viper.SetDefault("pomodoro.long_break_minutes", 15)
	viper.SetDefault("pomodoro.long_break_interval", 4)
	viper.SetDefault("forest.stage_interval_minutes", 5)
	viper.SetDefault("forest.distraction_damage", 20)
	viper.SetDefault("blocking.enabled", true)
	viper.SetDefault("blocking.distraction_sites", DefaultDistractionSites)
	viper.SetDefault("blocking.hosts_path", "$HOME/.config/focusforest/blocked.hosts")
	viper.SetDefault("blocking.redirect_address", "0.0.0.0")
	viper.SetDefault("notifications.enabled", true)
	viper.SetDefault("notifications.sound", true)
	viper.SetDefault("analytics.history_retention_days", 30)
	viper.SetDefault("analytics.mood_retention_days", 7)
	viper.SetDefault("analytics.insight_refresh_minutes", 5)
	viper.SetDefault("analytics.theme_refresh_minutes", 60)
}

func LoadConfig(configPath string) (*Config, error) {
	loadDotEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/focusforest")
		viper.AddConfigPath("/etc/focusforest/")
	}

	viper.SetEnvPrefix("FOCUSFOREST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using defaults.")
		} else {
			return nil, err
		}
	}

	cfg, err := decode()
	if err != nil {
		return nil, err
	}
	log.Printf("Configuration loaded: %+v", *cfg)
	return cfg, nil
}

func decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize clamps values that would break the timer or the analytics.
func (c *Config) normalize() {
	if c.CollectionIntervalSeconds < 1 {
		log.Println("Warning: collection_interval_seconds too low, setting to 1")
		c.CollectionIntervalSeconds = 1
	}
	if c.CollectMode != "always" && c.CollectMode != "focus" {
		log.Printf("Warning: invalid collect_mode '%s', defaulting to 'focus'", c.CollectMode)
		c.CollectMode = "focus"
	}
	if c.Pomodoro.FocusMinutes < 1 {
		log.Println("Warning: pomodoro.focus_minutes too low, setting to 25")
		c.Pomodoro.FocusMinutes = 25
	}
	if c.Pomodoro.ShortBreakMinutes < 1 {
		c.Pomodoro.ShortBreakMinutes = 5
	}
	if c.Pomodoro.LongBreakMinutes < 1 {
		c.Pomodoro.LongBreakMinutes = 15
	}
	if c.Pomodoro.LongBreakInterval < 1 {
		log.Println("Warning: pomodoro.long_break_interval too low, setting to 4")
		c.Pomodoro.LongBreakInterval = 4
	}
	if c.Forest.StageIntervalMinutes < 1 {
		c.Forest.StageIntervalMinutes = 5
	}
	if c.Forest.DistractionDamage < 1 || c.Forest.DistractionDamage > 100 {
		log.Printf("Warning: invalid forest.distraction_damage %d, defaulting to 20", c.Forest.DistractionDamage)
		c.Forest.DistractionDamage = 20
	}
	if c.Analytics.HistoryRetentionDays < 1 {
		c.Analytics.HistoryRetentionDays = 30
	}
	if c.Analytics.MoodRetentionDays < 1 {
		c.Analytics.MoodRetentionDays = 7
	}
	if c.Analytics.InsightRefreshMinutes < 1 {
		c.Analytics.InsightRefreshMinutes = 5
	}
	if c.Analytics.ThemeRefreshMinutes < 1 {
		c.Analytics.ThemeRefreshMinutes = 60
	}
	c.Blocking.HostsPath = os.ExpandEnv(c.Blocking.HostsPath)
}

// Watch re-reads the config file whenever it changes on disk and passes the
// decoded result to onChange. It does nothing when no config file was found.
func Watch(onChange func(*Config)) bool {
	if viper.ConfigFileUsed() == "" {
		return false
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Printf("Config file changed: %s", e.Name)
		cfg, err := decode()
		if err != nil {
			log.Printf("Warning: ignoring invalid config change: %v", err)
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
	return true
}

func (p PomodoroConfig) FocusDuration() time.Duration {
	return time.Duration(p.FocusMinutes) * time.Minute
}
func (p PomodoroConfig) ShortBreakDuration() time.Duration {
	return time.Duration(p.ShortBreakMinutes) * time.Minute
}
func (p PomodoroConfig) LongBreakDuration() time.Duration {
	return time.Duration(p.LongBreakMinutes) * time.Minute
}

func (f ForestConfig) StageInterval() time.Duration {
	return time.Duration(f.StageIntervalMinutes) * time.Minute
}

func (a AnalyticsConfig) HistoryRetention() time.Duration {
	return time.Duration(a.HistoryRetentionDays) * 24 * time.Hour
}
func (a AnalyticsConfig) MoodRetention() time.Duration {
	return time.Duration(a.MoodRetentionDays) * 24 * time.Hour
}
