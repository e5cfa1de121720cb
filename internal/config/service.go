package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/muurk/modbusreader/internal/reader"
)

// EnvPrefix prefixes every environment override, e.g. MODBUSREADER_SERVER_PORT.
const EnvPrefix = "MODBUSREADER"

// ServiceConfigName is the base name searched for when no file is given.
const ServiceConfigName = "modbusreader"

// ServiceConfig holds the configuration service settings.
type ServiceConfig struct {
	LogLevel string         `mapstructure:"log_level"`
	Server   ServerSettings `mapstructure:"server"`
	Reader   reader.Config  `mapstructure:"reader"`
}

// ServerSettings configures the REST listener.
type ServerSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	CertPath        string        `mapstructure:"cert_path"`
	KeyPath         string        `mapstructure:"key_path"`
	Advertise       bool          `mapstructure:"advertise"`
	Instance        string        `mapstructure:"instance"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func setServiceDefaults(v *viper.Viper) {
	rd := reader.DefaultConfig()

	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.cert_path", "")
	v.SetDefault("server.key_path", "")
	v.SetDefault("server.advertise", true)
	v.SetDefault("server.instance", "")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("reader.mode", rd.Mode)
	v.SetDefault("reader.address", rd.Address)
	v.SetDefault("reader.slave_id", rd.SlaveID)
	v.SetDefault("reader.timeout", rd.Timeout.String())
	v.SetDefault("reader.baud_rate", rd.BaudRate)
	v.SetDefault("reader.data_bits", rd.DataBits)
	v.SetDefault("reader.parity", rd.Parity)
	v.SetDefault("reader.stop_bits", rd.StopBits)
}

// LoadServiceConfig reads the service settings. An explicit path must exist.
// With an empty path, modbusreader.yaml is looked up in the working directory
// and the user config directory; a missing file leaves defaults in place.
// MODBUSREADER_* environment variables override both.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	v := viper.New()
	setServiceDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName(ServiceConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg ServiceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the listener settings and the reader transport.
func (c *ServiceConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if (c.Server.CertPath == "") != (c.Server.KeyPath == "") {
		return errors.New("server cert_path and key_path must be set together")
	}
	if c.Server.Password != "" && c.Server.Username == "" {
		return errors.New("server password set without username")
	}
	if err := c.Reader.Validate(); err != nil {
		return fmt.Errorf("invalid reader settings: %w", err)
	}
	return nil
}
