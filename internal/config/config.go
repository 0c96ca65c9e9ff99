// Package config defines the listener's runtime configuration, loaded
// from a file, environment variables, and command-line flags via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the full set of knobs a raknetd instance is started with.
type Config struct {
	BindAddress     string        `mapstructure:"bind_address"`
	MetricsBind     string        `mapstructure:"metrics_bind_address"`
	ServerName      string        `mapstructure:"server_name"`
	MaxPlayers      int           `mapstructure:"max_players"`
	MaxConnections  int           `mapstructure:"max_connections"`
	ProtocolVersion uint8         `mapstructure:"raknet_protocol_version"`
	MTU             uint16        `mapstructure:"mtu"`
	ServerGUID      uint64        `mapstructure:"server_guid"`
	Advertisement   string        `mapstructure:"advertisement"`
	LogLevel        string        `mapstructure:"log_level"`
	SessionTimeout  time.Duration `mapstructure:"session_timeout"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	TimeoutSweep    time.Duration `mapstructure:"timeout_sweep_interval"`
}

// Defaults returns the configuration a fresh install starts with.
func Defaults() Config {
	return Config{
		BindAddress:     "0.0.0.0:19132",
		MetricsBind:     "",
		ServerName:      "A RakNet Server",
		MaxPlayers:      20,
		MaxConnections:  20,
		ProtocolVersion: 11,
		MTU:             1492,
		ServerGUID:      0,
		LogLevel:        "info",
		SessionTimeout:  30 * time.Second,
		TickInterval:    10 * time.Millisecond,
		TimeoutSweep:    5 * time.Second,
	}
}

// RegisterFlags attaches every Config field except Advertisement to cmd's
// persistent flags and binds each one into v, under both its flag name and
// its underscored config key, so precedence flows flag > env > file >
// default the way Viper resolves it.
func RegisterFlags(cmd *cobra.Command, v *viper.Viper) error {
	d := Defaults()
	flags := cmd.PersistentFlags()

	flags.String("bind-address", d.BindAddress, "UDP address to listen on (host:port)")
	flags.String("metrics-bind-address", d.MetricsBind, "HTTP address to serve Prometheus metrics on; empty disables it")
	flags.String("server-name", d.ServerName, "Name advertised to pinging clients")
	flags.Int("max-players", d.MaxPlayers, "Player count advertised in the unconnected pong")
	flags.Int("max-connections", d.MaxConnections, "Maximum concurrent sessions accepted")
	flags.Uint8("raknet-protocol-version", d.ProtocolVersion, "RakNet protocol version to advertise and require")
	flags.Uint16("mtu", d.MTU, "Maximum transmission unit offered during handshake")
	flags.Uint64("server-guid", d.ServerGUID, "Server GUID; 0 generates one at startup")
	flags.String("log-level", d.LogLevel, "Logging level: debug, info, warn, error")
	flags.Duration("session-timeout", d.SessionTimeout, "Inactivity duration after which a session is dropped")
	flags.Duration("tick-interval", d.TickInterval, "Interval between dispatcher ticks")
	flags.Duration("timeout-sweep-interval", d.TimeoutSweep, "Interval between session-timeout sweeps")

	for _, name := range []string{
		"bind-address", "metrics-bind-address", "server-name", "max-players",
		"max-connections", "raknet-protocol-version", "mtu", "server-guid",
		"log-level", "session-timeout", "tick-interval", "timeout-sweep-interval",
	} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads a config file (if one was set) plus the RAKNETD_-prefixed
// environment and flag overrides bound by RegisterFlags, and returns the
// populated Config.
func Load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("raknetd")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// BuildAdvertisement returns the semicolon-delimited MCPE advertisement
// string advertised in response to unconnected pings: Advertisement
// verbatim when set, otherwise one derived from the other fields.
func (c Config) BuildAdvertisement(onlinePlayers int) string {
	if c.Advertisement != "" {
		return c.Advertisement
	}
	return fmt.Sprintf("MCPE;%s;%d;1.20.0;%d;%d;%d;%s;Survival;1;19132;19133;",
		c.ServerName, c.ProtocolVersion, onlinePlayers, c.MaxPlayers, int64(c.ServerGUID), c.ServerName)
}
