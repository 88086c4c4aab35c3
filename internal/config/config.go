// Package config loads gateway settings from configs/config.yml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"hvac_gateway/internal/logger"
	"hvac_gateway/internal/models"

	"github.com/spf13/viper"
)

// DefaultPath is read when neither an explicit path nor HVAC_CONFIG is set.
const DefaultPath = "configs/config.yml"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Device   DeviceConfig   `mapstructure:"device"`
	Auth     AuthConfig     `mapstructure:"auth"`
	DB       DBConfig       `mapstructure:"db"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Influx   InfluxConfig   `mapstructure:"influx"`
	Emulator EmulatorConfig `mapstructure:"emulator"`

	policy models.Policy
}

type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            string   `mapstructure:"port"`
	Debug           bool     `mapstructure:"debug"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
	RateLimitPerSec float64  `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int      `mapstructure:"rate_limit_burst"`
}

type DeviceConfig struct {
	Host            string        `mapstructure:"host"`
	Name            string        `mapstructure:"name"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Bulk            bool          `mapstructure:"bulk"`
}

type AuthConfig struct {
	Username           string            `mapstructure:"username"`
	Password           string            `mapstructure:"password"`
	SuUsername         string            `mapstructure:"su_username"`
	SuPassword         string            `mapstructure:"su_password"`
	TokenSecret        string            `mapstructure:"token_secret"`
	TokenTTL           time.Duration     `mapstructure:"token_ttl"`
	CredentialCacheTTL time.Duration     `mapstructure:"credential_cache_ttl"`
	Policy             map[string]string `mapstructure:"policy"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

type InfluxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

type EmulatorConfig struct {
	Port string        `mapstructure:"port"`
	Tick time.Duration `mapstructure:"tick"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_sec", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("device.host", "")
	v.SetDefault("device.name", "")
	v.SetDefault("device.timeout", 5*time.Second)
	v.SetDefault("device.refresh_interval", 30*time.Second)
	v.SetDefault("device.bulk", true)

	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.su_username", "")
	v.SetDefault("auth.su_password", "")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.credential_cache_ttl", 5*time.Minute)

	v.SetDefault("db.path", "hvac.db")

	v.SetDefault("logging.level", logger.InfoLevel)
	v.SetDefault("logging.format", logger.ConsoleFormat)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "hvac-gateway")
	v.SetDefault("mqtt.topic", "hvac/{device}/state")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "hvac")

	v.SetDefault("emulator.port", "8081")
	v.SetDefault("emulator.tick", time.Second)
}

// legacyEnv maps keys to the plain variable names older deployments use.
// HVAC_-prefixed variables win when both are set.
var legacyEnv = map[string]string{
	"device.host":      "RPI_HOST",
	"device.name":      "HVAC_NAME",
	"auth.username":    "USERNAME",
	"auth.password":    "PASSWORD",
	"auth.su_username": "SU_USERNAME",
	"auth.su_password": "SU_PASSWORD",
}

// Load reads the YAML file at path (or $HVAC_CONFIG, or DefaultPath) and
// applies environment overrides. A missing DefaultPath is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HVAC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "HVAC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	explicit := true
	if path == "" {
		path = os.Getenv("HVAC_CONFIG")
	}
	if path == "" {
		path, explicit = DefaultPath, false
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks what the gateway needs to start and builds the
// role policy.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Device.Host) == "" {
		problems = append(problems, "device.host is required")
	}
	if strings.TrimSpace(c.Device.Name) == "" {
		problems = append(problems, "device.name is required")
	}
	if c.Auth.Username == "" || c.Auth.Password == "" {
		problems = append(problems, "auth.username and auth.password are required")
	}
	if c.Auth.SuUsername == "" || c.Auth.SuPassword == "" {
		problems = append(problems, "auth.su_username and auth.su_password are required")
	}
	if c.Device.Timeout <= 0 {
		problems = append(problems, "device.timeout must be positive")
	}
	if c.Device.RefreshInterval <= 0 {
		problems = append(problems, "device.refresh_interval must be positive")
	}
	if _, err := strconv.Atoi(strings.TrimPrefix(c.Server.Port, ":")); err != nil {
		problems = append(problems, fmt.Sprintf("server.port %q is not a number", c.Server.Port))
	}
	if c.Server.RateLimitPerSec < 0 || c.Server.RateLimitBurst < 0 {
		problems = append(problems, "server rate limit values must not be negative")
	}
	if f := c.Logging.Format; f != logger.ConsoleFormat && f != logger.JSONFormat {
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", f))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		problems = append(problems, "mqtt.broker is required when mqtt is enabled")
	}
	if c.Influx.Enabled && (c.Influx.URL == "" || c.Influx.Org == "" || c.Influx.Bucket == "") {
		problems = append(problems, "influx.url, influx.org and influx.bucket are required when influx is enabled")
	}

	policy, err := models.DefaultPolicy().WithOverrides(c.Auth.Policy)
	if err != nil {
		problems = append(problems, "auth.policy: "+err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	c.policy = policy
	return nil
}

// Policy returns the role policy built by Validate, or the default policy
// before Validate has run.
func (c *Config) Policy() models.Policy {
	if c.policy == nil {
		return models.DefaultPolicy()
	}
	return c.policy
}

// Addr is host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strings.TrimPrefix(s.Port, ":")
}
