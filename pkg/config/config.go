package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/confluence"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/manipulation"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/normalize"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/quality"
)

var validate = validator.New()

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Logging     struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
		// WarnFallbacks raises safemath fallback logging from debug to warn.
		WarnFallbacks bool `yaml:"warn_fallbacks"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine struct {
		Workers        int           `yaml:"workers" default:"4"`
		BufferSize     int           `yaml:"buffer_size" default:"1024"`
		PublishTimeout time.Duration `yaml:"publish_timeout"`
		MaxPerSymbolPS float64       `yaml:"max_per_symbol_per_sec" default:"10"`
		// Integration modes for manipulation detection; composable.
		Prefilter     bool `yaml:"prefilter" default:"true"`
		PenaltyAdjust bool `yaml:"penalty_adjust" default:"true"`
		// Indicators whose raw output is standardized through the rolling
		// normalizer instead of being read as a native [0,100] score.
		ZScoreIndicators []string `yaml:"zscore_indicators"`
		// Indicators derived from the order book; these receive the
		// manipulation confidence adjustment.
		OrderbookIndicators []string `yaml:"orderbook_indicators"`
	} `yaml:"engine"`
	Weights      map[string]float64  `yaml:"weights"`
	Normalizer   normalize.Config    `yaml:"normalizer"`
	Manipulation manipulation.Config `yaml:"manipulation"`
	Confluence   confluence.Config   `yaml:"confluence"`
	Filter       quality.FilterConfig  `yaml:"filter"`
	Tracker      quality.TrackerConfig `yaml:"tracker"`
	Kafka        struct {
		Brokers     []string `yaml:"brokers"`
		CycleTopic  string   `yaml:"cycle_topic" default:"indicator.cycles"`
		ResultTopic string   `yaml:"result_topic" default:"confluence.results"`
		Compression string   `yaml:"compression" default:"gzip"`
		RequiredAcks int     `yaml:"required_acks" default:"-1"`
		Producer    struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"confluence-engine"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"confluence"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert" default:"true"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Host      string        `yaml:"host" default:"localhost"`
		Port      int           `yaml:"port" default:"6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix" default:"confluence"`
		ResultTTL time.Duration `yaml:"result_ttl"`
	} `yaml:"redis"`
}

// Load reads, defaults, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.applyDurationDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			fmt.Sscanf(port, "%d", &c.Redis.Port)
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return c, nil
}

// applyDurationDefaults fills duration fields the tag-based defaulting
// does not cover.
func (c *Config) applyDurationDefaults() {
	setDur := func(d *time.Duration, def time.Duration) {
		if *d <= 0 {
			*d = def
		}
	}
	setDur(&c.Server.ReadTimeout, 10*time.Second)
	setDur(&c.Server.WriteTimeout, 10*time.Second)
	setDur(&c.Server.ShutdownTimeout, 10*time.Second)
	setDur(&c.Engine.PublishTimeout, 5*time.Second)
	setDur(&c.Kafka.Producer.Linger, time.Second)
	setDur(&c.Kafka.Producer.WriteTimeout, 10*time.Second)
	setDur(&c.Kafka.Producer.ReadTimeout, 10*time.Second)
	setDur(&c.Kafka.Consumer.BackoffMin, 100*time.Millisecond)
	setDur(&c.Kafka.Consumer.BackoffMax, 5*time.Second)
	setDur(&c.ClickHouse.DialTimeout, 5*time.Second)
	setDur(&c.ClickHouse.ReadTimeout, 10*time.Second)
	setDur(&c.ClickHouse.WriteTimeout, 10*time.Second)
	setDur(&c.Redis.ResultTTL, 5*time.Minute)
	setDur(&c.Confluence.Quality.MaxStaleness, 60*time.Second)
	setDur(&c.Tracker.FlushInterval, 2*time.Second)
	setDur(&c.Tracker.SinkTimeout, 5*time.Second)
}

// Validate rejects configurations a correct deployment cannot run with:
// weights that do not sum to 1.0, thresholds outside their ranges, or a
// normalization window smaller than the readiness requirement.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if err := confluence.WeightSet(c.Weights).Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}

	inRange01 := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", name, v)
		}
		return nil
	}
	if err := inRange01("filter.confidence_threshold", c.Filter.ConfidenceThreshold); err != nil {
		return err
	}
	if c.Filter.DisagreementThreshold < 0 {
		return fmt.Errorf("filter.disagreement_threshold must be >= 0")
	}
	if err := inRange01("manipulation.cancel_rate_threshold", c.Manipulation.CancelRateThreshold); err != nil {
		return err
	}
	if err := inRange01("manipulation.uniformity_threshold", c.Manipulation.UniformityThreshold); err != nil {
		return err
	}
	if c.Confluence.Lambda <= 0 {
		return fmt.Errorf("confluence.lambda must be > 0, got %f", c.Confluence.Lambda)
	}
	if c.Manipulation.SizeMultiplier <= 1 {
		return fmt.Errorf("manipulation.size_multiplier must be > 1, got %f", c.Manipulation.SizeMultiplier)
	}
	if uint64(c.Normalizer.Lookback) < c.Normalizer.MinSamples {
		return fmt.Errorf("normalizer.lookback (%d) must be >= min_samples (%d)",
			c.Normalizer.Lookback, c.Normalizer.MinSamples)
	}
	if c.Confluence.Quality.MinIndicators < 1 {
		return fmt.Errorf("confluence.quality.min_indicators must be >= 1")
	}
	return nil
}
