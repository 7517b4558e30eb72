package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Quiz struct {
		Enabled bool `yaml:"enabled"`
		Auto    struct {
			Enabled         bool `yaml:"enabled"`
			IntervalSeconds int  `yaml:"interval-seconds"`
		} `yaml:"auto"`
		Round struct {
			TimeLimitSeconds     int  `yaml:"time-limit-seconds"`
			AllowMultipleWinners bool `yaml:"allow-multiple-winners"`
		} `yaml:"round"`
		Answer struct {
			AllowChat  bool   `yaml:"allow-chat"`
			ChatPrefix string `yaml:"chat-prefix"`
			CooldownMs int64  `yaml:"cooldown-ms"`
			MinHumanMs int64  `yaml:"min-human-ms"`
		} `yaml:"answer"`
		Question struct {
			File           string `yaml:"file"`
			AvoidRepeats   bool   `yaml:"avoid-repeats"`
			RepeatCooldown int    `yaml:"repeat-cooldown"`
		} `yaml:"question"`
		Eligibility struct {
			MinOnlineSeconds int64 `yaml:"min-online-seconds"`
		} `yaml:"eligibility"`
		Broadcast struct {
			Scope      string `yaml:"scope"`
			Channel    string `yaml:"channel"`
			Permission string `yaml:"permission"`
		} `yaml:"broadcast"`
	} `yaml:"quiz"`
	Rewards map[string]RewardProfile `yaml:"rewards"`
}

// RewardProfile mirrors domain.RewardDefinition in config form.
type RewardProfile struct {
	Money    float64  `yaml:"money"`
	XP       int      `yaml:"xp"`
	Commands []string `yaml:"commands"`
}

// Load reads YAML config from path and applies defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.clamp()
	return cfg, nil
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Quiz.Enabled = true
	cfg.Quiz.Auto.Enabled = true
	cfg.Quiz.Auto.IntervalSeconds = 300
	cfg.Quiz.Round.TimeLimitSeconds = 30
	cfg.Quiz.Answer.AllowChat = true
	cfg.Quiz.Answer.ChatPrefix = "!"
	cfg.Quiz.Answer.CooldownMs = 750
	cfg.Quiz.Answer.MinHumanMs = 250
	cfg.Quiz.Question.AvoidRepeats = true
	cfg.Quiz.Question.RepeatCooldown = 5
	cfg.Quiz.Broadcast.Scope = "GLOBAL"
	return cfg
}

// clamp keeps user-edited values inside sane bounds.
func (c *Config) clamp() {
	if c.Quiz.Auto.IntervalSeconds < 15 {
		c.Quiz.Auto.IntervalSeconds = 15
	}
	if c.Quiz.Round.TimeLimitSeconds < 5 {
		c.Quiz.Round.TimeLimitSeconds = 5
	}
	if c.Quiz.Answer.CooldownMs < 0 {
		c.Quiz.Answer.CooldownMs = 0
	}
	if c.Quiz.Answer.MinHumanMs < 0 {
		c.Quiz.Answer.MinHumanMs = 0
	}
	if c.Quiz.Question.RepeatCooldown < 0 {
		c.Quiz.Question.RepeatCooldown = 0
	}
	if c.Quiz.Eligibility.MinOnlineSeconds < 0 {
		c.Quiz.Eligibility.MinOnlineSeconds = 0
	}
}

// RoundTimeLimit returns the round duration as a time.Duration.
func (c Config) RoundTimeLimit() time.Duration {
	return time.Duration(c.Quiz.Round.TimeLimitSeconds) * time.Second
}

// AutoInterval returns the scheduler tick interval.
func (c Config) AutoInterval() time.Duration {
	return time.Duration(c.Quiz.Auto.IntervalSeconds) * time.Second
}
