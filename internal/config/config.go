package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Runtime struct {
	Dev bool
}

type Server struct {
	Port          int    `yaml:"port"`
	JWTSecret     string `yaml:"jwt_secret"`
	RatePerMinute int    `yaml:"rate_per_minute"` // enqueue requests per session per minute
}

type Log struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type Database struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

func (d Database) DSN() string { return d.URL }

type Redis struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AI struct {
	FalKey            string `yaml:"fal_key"`
	FalBaseURL        string `yaml:"fal_base_url"`
	GeminiKey         string `yaml:"gemini_key"`
	GeminiURL         string `yaml:"gemini_url"`
	OpenAIKey         string `yaml:"openai_key"` // embeddings
	DefaultChatModel  string `yaml:"default_chat_model"`
	DefaultImageModel string `yaml:"default_image_model"`
	Debug             bool   `yaml:"debug"` // log vendor payloads (masked)
}

type Worker struct {
	ChatWorkers   int           `yaml:"chat_workers"`
	ImageWorkers  int           `yaml:"image_workers"`
	IngestWorkers int           `yaml:"ingest_workers"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

type Storage struct {
	BaseURL string `yaml:"base_url"` // document blob endpoint
}

type Config struct {
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	AI       AI       `yaml:"ai"`
	Worker   Worker   `yaml:"worker"`
	Storage  Storage  `yaml:"storage"`

	Runtime Runtime `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.AI.FalKey == "" && cfg.AI.GeminiKey == "" {
		return nil, errors.New("ai.fal_key or ai.gemini_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RatePerMinute <= 0 {
		cfg.Server.RatePerMinute = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.AI.DefaultChatModel == "" {
		cfg.AI.DefaultChatModel = "google/gemini-2.5-flash"
	}
	if cfg.AI.DefaultImageModel == "" {
		cfg.AI.DefaultImageModel = "fal-ai/imagen4/preview"
	}
	if cfg.Worker.ChatWorkers <= 0 {
		cfg.Worker.ChatWorkers = 4
	}
	if cfg.Worker.ImageWorkers <= 0 {
		cfg.Worker.ImageWorkers = 2
	}
	if cfg.Worker.IngestWorkers <= 0 {
		cfg.Worker.IngestWorkers = 1
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = 500 * time.Millisecond
	}
}
