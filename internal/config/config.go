// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		DataPort       int      `mapstructure:"data_port"`
		UIPort         int      `mapstructure:"ui_port"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		StateSamples   int      `mapstructure:"state_samples"` // per metric in state views, 0 = all
	} `mapstructure:"server"`
	Store struct {
		Retention      int           `mapstructure:"retention"`
		OverlayTimeout time.Duration `mapstructure:"overlay_timeout"`
	} `mapstructure:"store"`
	Feed struct {
		Enabled      bool          `mapstructure:"enabled"`
		URL          string        `mapstructure:"url"`
		ReconnectMin time.Duration `mapstructure:"reconnect_min"`
		ReconnectMax time.Duration `mapstructure:"reconnect_max"`
		QueueSize    int           `mapstructure:"queue_size"`
	} `mapstructure:"feed"`
	Backend    Backend    `mapstructure:"backend"`
	Simulation Simulation `mapstructure:"simulation"`
	Auth       Auth       `mapstructure:"auth"`
	Alerting   Alerting   `mapstructure:"alerting"`
	Log        struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

type Backend struct {
	AuthURL       string        `mapstructure:"auth_url"`
	SimulationURL string        `mapstructure:"simulation_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type Simulation struct {
	// Mode is "backend" (forward triggers to the backend) or "local"
	// (generate synthetic samples in-process).
	Mode     string        `mapstructure:"mode"`
	Interval time.Duration `mapstructure:"interval"`
	Duration int           `mapstructure:"duration"` // default seconds of synthetic data
}

type Auth struct {
	JWTSecret     string   `mapstructure:"jwt_secret"`
	JWTExpiration int      `mapstructure:"jwt_expiration"` // in minutes
	CookieName    string   `mapstructure:"cookie_name"`
	SecureCookie  bool     `mapstructure:"secure_cookie"`
	APIKeys       []string `mapstructure:"api_keys"`   // bcrypt hashes of feed producer keys
	JudgeKeys     []string `mapstructure:"judge_keys"` // bcrypt hashes of simulation panel keys
}

type Alerting struct {
	Kafka struct {
		Enabled bool     `mapstructure:"enabled"`
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	MQTT struct {
		Enabled  bool   `mapstructure:"enabled"`
		Broker   string `mapstructure:"broker"`
		Topic    string `mapstructure:"topic"`
		ClientID string `mapstructure:"client_id"`
	} `mapstructure:"mqtt"`
}

// Load reads config.yaml from path, applies HELIOS_* environment overrides,
// and fills every unset key with its default. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("helios")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.DataPort <= 0 || c.Server.UIPort <= 0 {
		errs = append(errs, errors.New("server ports must be positive"))
	}
	if c.Server.DataPort == c.Server.UIPort {
		errs = append(errs, errors.New("data_port and ui_port must differ"))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("server.allowed_origins must list at least one origin"))
	}
	if c.Server.StateSamples < 0 {
		errs = append(errs, errors.New("server.state_samples must not be negative"))
	}
	if c.Store.Retention <= 0 {
		errs = append(errs, errors.New("store.retention must be positive"))
	}
	if c.Store.OverlayTimeout < 0 {
		errs = append(errs, errors.New("store.overlay_timeout must not be negative"))
	}
	if c.Feed.Enabled && c.Feed.URL == "" {
		errs = append(errs, errors.New("feed.url is required when the feed is enabled"))
	}
	if c.Simulation.Interval <= 0 {
		errs = append(errs, errors.New("simulation.interval must be positive"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret must be set"))
	}
	if c.Simulation.Mode != "backend" && c.Simulation.Mode != "local" {
		errs = append(errs, fmt.Errorf("simulation.mode %q must be backend or local", c.Simulation.Mode))
	}
	if c.Alerting.Kafka.Enabled && (len(c.Alerting.Kafka.Brokers) == 0 || c.Alerting.Kafka.Topic == "") {
		errs = append(errs, errors.New("alerting.kafka needs brokers and a topic"))
	}
	if c.Alerting.MQTT.Enabled && (c.Alerting.MQTT.Broker == "" || c.Alerting.MQTT.Topic == "") {
		errs = append(errs, errors.New("alerting.mqtt needs a broker and a topic"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.data_port", 8080)
	v.SetDefault("server.ui_port", 8081)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("server.state_samples", 0)

	v.SetDefault("store.retention", 360)
	v.SetDefault("store.overlay_timeout", "0s")

	v.SetDefault("feed.enabled", true)
	v.SetDefault("feed.url", "ws://127.0.0.1:8000/ws")
	v.SetDefault("feed.reconnect_min", "1s")
	v.SetDefault("feed.reconnect_max", "30s")
	v.SetDefault("feed.queue_size", 256)

	v.SetDefault("backend.auth_url", "http://127.0.0.1:8001")
	v.SetDefault("backend.simulation_url", "http://127.0.0.1:8000")
	v.SetDefault("backend.timeout", "5s")

	v.SetDefault("simulation.mode", "backend")
	v.SetDefault("simulation.interval", "100ms")
	v.SetDefault("simulation.duration", 60)

	v.SetDefault("auth.jwt_secret", "change-me")
	v.SetDefault("auth.jwt_expiration", 720)
	v.SetDefault("auth.cookie_name", "helios_session")
	v.SetDefault("auth.secure_cookie", false)
	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("auth.judge_keys", []string{})

	v.SetDefault("alerting.kafka.enabled", false)
	v.SetDefault("alerting.kafka.topic", "helios.alerts")
	v.SetDefault("alerting.mqtt.enabled", false)
	v.SetDefault("alerting.mqtt.topic", "helios/alerts")
	v.SetDefault("alerting.mqtt.client_id", "helios-watch")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
