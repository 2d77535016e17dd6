// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/bassosimone/gateway"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envPrefix prefixes the environment variables overriding the configuration.
const envPrefix = "GATEWAY"

// Config is the daemon configuration.
//
// Values come from defaults, then from the optional file named by
// GATEWAY_CONFIG, then from GATEWAY_* environment variables, then from
// the command line.
type Config struct {
	// App is the application name in "module:callable" form.
	App string `mapstructure:"app"`

	// DNSServer, when set, is the "ip:port" of the DNS server used to
	// compute the server name instead of the system resolver.
	DNSServer string `mapstructure:"dns_server"`

	// Host is the host to bind. Empty means all addresses.
	Host string `mapstructure:"host"`

	// LogFormat is either "text" or "json".
	LogFormat string `mapstructure:"log_format"`

	// LogLevel is the minimum level of emitted events.
	LogLevel slog.Level `mapstructure:"log_level"`

	// Port is the port to bind.
	Port int `mapstructure:"port"`

	// ReadBufferSize is the size of the single read on each connection.
	ReadBufferSize int `mapstructure:"read_buffer_size"`

	// ReadTimeout bounds the single read. Zero means no timeout.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// ServerNameTimeout bounds the server name lookup at startup.
	ServerNameTimeout time.Duration `mapstructure:"server_name_timeout"`

	// ServerSoftware is the banner in the Server header.
	ServerSoftware string `mapstructure:"server_software"`
}

// Address returns the "host:port" address to bind.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// loadConfig reads the configuration into v and decodes it. The first
// positional argument, if any, overrides the application name.
func loadConfig(v *viper.Viper, args []string) (*Config, error) {
	v.SetDefault("app", defaultAppName)
	v.SetDefault("dns_server", "")
	v.SetDefault("host", "")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("read_buffer_size", gateway.DefaultReadBufferSize)
	v.SetDefault("read_timeout", "0s")
	v.SetDefault("server_name_timeout", gateway.DefaultServerNameTimeout.String())
	v.SetDefault("server_software", gateway.DefaultServerSoftware)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	if len(args) > 0 {
		v.Set("app", args[0])
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, err
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("gatewayd: invalid port: %d", cfg.Port)
	}
	if cfg.ReadBufferSize <= 0 {
		return nil, fmt.Errorf("gatewayd: invalid read buffer size: %d", cfg.ReadBufferSize)
	}
	return cfg, nil
}

// newLogger returns the logger writing to w in the configured format.
func newLogger(cfg *Config, w io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	switch cfg.LogFormat {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("gatewayd: unknown log format: %q", cfg.LogFormat)
	}
}

// newGatewayConfig returns the [*gateway.Config] for cfg.
func newGatewayConfig(cfg *Config, logger *slog.Logger) (*gateway.Config, error) {
	gcfg := gateway.NewConfig()
	gcfg.ReadBufferSize = cfg.ReadBufferSize
	gcfg.ReadTimeout = cfg.ReadTimeout
	gcfg.ServerNameTimeout = cfg.ServerNameTimeout
	gcfg.ServerSoftware = cfg.ServerSoftware
	if cfg.DNSServer != "" {
		server, err := netip.ParseAddrPort(cfg.DNSServer)
		if err != nil {
			return nil, err
		}
		gcfg.Resolver = gateway.NewDNSResolver(gcfg, server, logger)
	}
	return gcfg, nil
}
