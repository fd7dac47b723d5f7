package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DataDir  string `mapstructure:"data_dir"`
	ReadOnly bool   `mapstructure:"read_only"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.read_only", false)
	v.SetDefault("heartbeat.interval", "5s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/plainview.db")

	// Plugin defaults
	v.SetDefault("plugins.sim.enabled", true)
	v.SetDefault("plugins.sim.tick_interval", "5s")
	v.SetDefault("plugins.fleet.monitor_interval", "30s")
	v.SetDefault("plugins.fleet.offline_threshold", "60s")
	v.SetDefault("plugins.fleet.telemetry_interval", "5s")
	v.SetDefault("plugins.fleet.command_history", 200)
	v.SetDefault("plugins.fleet.ack_delay_min", "500ms")
	v.SetDefault("plugins.fleet.ack_delay_max", "2500ms")
	v.SetDefault("plugins.flow.interval", "5s")
	v.SetDefault("plugins.flow.history_capacity", 100)
	v.SetDefault("plugins.flow.anomaly_capacity", 500)
	v.SetDefault("plugins.flow.window_size", 10)
	v.SetDefault("plugins.pipeline.scan_interval", "10s")
	v.SetDefault("plugins.pipeline.history_capacity", 100)
	v.SetDefault("plugins.rig.scan_interval", "3s")
	v.SetDefault("plugins.rig.history_capacity", 500)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("plainview")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/plainview")
	}

	// Environment variable support: PV_SERVER_PORT=9090
	v.SetEnvPrefix("PV")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
