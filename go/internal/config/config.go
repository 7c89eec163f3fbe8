package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Question source kinds
const (
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
	Questions QuestionsConfig `yaml:"questions"`
	Relay     RelayConfig     `yaml:"relay"`
	History   HistoryConfig   `yaml:"history"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBattles     int      `yaml:"max_battles"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type EngineConfig struct {
	TotalRounds   int             `yaml:"total_rounds"`
	RoundMaxTime  int             `yaml:"round_max_time"`
	TickInterval  time.Duration   `yaml:"tick_interval"`
	EntranceDelay time.Duration   `yaml:"entrance_delay"`
	FeedbackDelay time.Duration   `yaml:"feedback_delay"`
	AdvanceDelay  time.Duration   `yaml:"advance_delay"`
	MaxScore      int             `yaml:"max_score"`
	Opponent      OpponentProfile `yaml:"opponent"`
}

type OpponentProfile struct {
	Avatar       string  `yaml:"avatar"`
	Accuracy     float64 `yaml:"accuracy"`
	SpeedMsRange [2]int  `yaml:"speed_ms_range"`
}

type QuestionsConfig struct {
	Source  string        `yaml:"source"`
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RelayConfig struct {
	NATSURL       string        `yaml:"nats_url"`
	StreamName    string        `yaml:"stream_name"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	BufferSize    int           `yaml:"buffer_size"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type HistoryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	SaveTimeout time.Duration `yaml:"save_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	ec := engine.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
			MaxBattles:     100,
		},
		Log: LogConfig{Level: "info", Console: true},
		Engine: EngineConfig{
			TotalRounds:   ec.TotalRounds,
			RoundMaxTime:  ec.RoundMaxTime,
			TickInterval:  ec.TickInterval,
			EntranceDelay: ec.EntranceDelay,
			FeedbackDelay: ec.FeedbackDelay,
			AdvanceDelay:  ec.AdvanceDelay,
			MaxScore:      ec.MaxScore,
			Opponent: OpponentProfile{
				Avatar:       ec.Opponent.Avatar,
				Accuracy:     ec.Opponent.Accuracy,
				SpeedMsRange: ec.Opponent.SpeedMsRange,
			},
		},
		Questions: QuestionsConfig{
			Source:  SourceFile,
			Path:    "qb.json",
			Timeout: 10 * time.Second,
		},
		Relay: RelayConfig{
			StreamName:    "BATTLE_EVENTS",
			SubjectPrefix: "quiz.events",
			BufferSize:    1024,
			MaxRetries:    3,
			RetryDelay:    200 * time.Millisecond,
		},
		History: HistoryConfig{SaveTimeout: 5 * time.Second},
	}
}

// Load reads the YAML file at path over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.MaxBattles = getEnvAsInt("MAX_BATTLES", c.Server.MaxBattles)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Engine.TotalRounds = getEnvAsInt("TOTAL_ROUNDS", c.Engine.TotalRounds)
	c.Questions.Source = getEnv("QUESTION_SOURCE", c.Questions.Source)
	c.Questions.Path = getEnv("QUESTION_BANK_PATH", c.Questions.Path)
	c.Questions.URL = getEnv("QUESTION_BANK_URL", c.Questions.URL)
	c.Relay.NATSURL = getEnv("NATS_URL", c.Relay.NATSURL)
	c.History.Enabled = getEnvAsBool("HISTORY_ENABLED", c.History.Enabled)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.TotalRounds < 1 {
		return fmt.Errorf("engine.total_rounds must be at least 1, got %d", c.Engine.TotalRounds)
	}
	if c.Engine.RoundMaxTime < 1 {
		return fmt.Errorf("engine.round_max_time must be at least 1, got %d", c.Engine.RoundMaxTime)
	}
	if c.Engine.TickInterval <= 0 {
		return errors.New("engine.tick_interval must be positive")
	}
	if r := c.Engine.Opponent.SpeedMsRange; r[0] < 0 || r[0] > r[1] {
		return fmt.Errorf("engine.opponent.speed_ms_range %v is not a valid range", r)
	}
	switch c.Questions.Source {
	case SourceFile:
		if c.Questions.Path == "" {
			return errors.New("questions.path is required for the file source")
		}
	case SourceHTTP:
		if c.Questions.URL == "" {
			return errors.New("questions.url is required for the http source")
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("unknown questions.source %q", c.Questions.Source)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// EngineConfig converts the engine section into engine.Config.
func (c *Config) EngineConfig() engine.Config {
	e := c.Engine
	return engine.Config{
		TotalRounds:   e.TotalRounds,
		RoundMaxTime:  e.RoundMaxTime,
		TickInterval:  e.TickInterval,
		EntranceDelay: e.EntranceDelay,
		FeedbackDelay: e.FeedbackDelay,
		AdvanceDelay:  e.AdvanceDelay,
		MaxScore:      e.MaxScore,
		Opponent: engine.OpponentProfile{
			Avatar:       e.Opponent.Avatar,
			Accuracy:     e.Opponent.Accuracy,
			SpeedMsRange: e.Opponent.SpeedMsRange,
		},
	}
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
