package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"clinic-queue/internal/announce"
	"clinic-queue/internal/queue"
	"clinic-queue/internal/remote"
)

const envPrefix = "CLINICQ"

type Config struct {
	HTTP     HTTPConfig           `mapstructure:"http"`
	Redis    RedisConfig          `mapstructure:"redis"`
	History  HistoryConfig        `mapstructure:"history"`
	Display  DisplayConfig        `mapstructure:"display"`
	PubNub   PubNubConfig         `mapstructure:"pubnub"`
	Audio    AudioConfig          `mapstructure:"audio"`
	Announce AnnounceConfig       `mapstructure:"announce"`
	Log      LogConfig            `mapstructure:"log"`
	Calls    CallsConfig          `mapstructure:"calls"`
	Counters []queue.CounterConfig `mapstructure:"counters"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type DisplayConfig struct {
	ID           string        `mapstructure:"id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type AudioConfig struct {
	Dir               string        `mapstructure:"dir"`
	InstantDir        string        `mapstructure:"instant_dir"`
	Player            string        `mapstructure:"player"`
	Speaker           string        `mapstructure:"speaker"`
	Language          string        `mapstructure:"language"`
	Rate              float64       `mapstructure:"rate"`
	Pause             time.Duration `mapstructure:"pause"`
	TTSFallback       bool          `mapstructure:"tts_fallback"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

type AnnounceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type CallsConfig struct {
	Keep int    `mapstructure:"keep"`
	Trim string `mapstructure:"trim_schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8081")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "clinicq:")
	v.SetDefault("history.capacity", queue.DefaultHistoryCapacity)
	v.SetDefault("display.id", "main")
	v.SetDefault("display.poll_interval", remote.DefaultPollInterval)
	v.SetDefault("pubnub.publish_key", "")
	v.SetDefault("pubnub.subscribe_key", "")
	v.SetDefault("pubnub.secret_key", "")
	v.SetDefault("pubnub.user_id", "clinicq-server")
	v.SetDefault("pubnub.display_user_id", "clinicq-display")
	v.SetDefault("audio.dir", "audio")
	v.SetDefault("audio.instant_dir", "")
	v.SetDefault("audio.player", "ffplay")
	v.SetDefault("audio.speaker", "espeak-ng")
	v.SetDefault("audio.language", announce.DefaultLanguage)
	v.SetDefault("audio.rate", 1.0)
	v.SetDefault("audio.pause", announce.DefaultPause)
	v.SetDefault("audio.tts_fallback", true)
	v.SetDefault("audio.requests_per_minute", 60)
	v.SetDefault("announce.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("calls.keep", 50)
	v.SetDefault("calls.trim_schedule", "*/10 * * * *")
	v.SetDefault("counters", []map[string]any{
		{"id": "1", "name": "Clinic 1"},
		{"id": "2", "name": "Clinic 2"},
		{"id": "3", "name": "Clinic 3"},
	})
}

// LoadConfig reads defaults, then the optional file at path, then
// CLINICQ_* environment variables.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("v.ReadInConfig(%v): %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("v.Unmarshal(): %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Counters) == 0 {
		return fmt.Errorf("no counters configured")
	}
	seen := map[string]bool{}
	for _, cc := range c.Counters {
		if cc.ID == "" {
			return fmt.Errorf("counter %q has an empty id", cc.Name)
		}
		if seen[cc.ID] {
			return fmt.Errorf("counter id %q configured twice", cc.ID)
		}
		seen[cc.ID] = true
	}
	if c.Calls.Keep < 1 {
		return fmt.Errorf("calls.keep must be at least 1, got %d", c.Calls.Keep)
	}
	return nil
}
