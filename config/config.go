/*
 * MIT License
 *
 * Copyright (c) 2024 gaspi contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package config binds the process's settings to viper (file/env) and
// validates them, mirroring the original server's own settings object.
package config

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/sabouaram/gaspi/logger"
)

// Config is the full set of knobs the arbiter and its workers need.
type Config struct {
	Host    string `mapstructure:"host" validate:"required"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Backlog int    `mapstructure:"backlog" validate:"min=0"`
	Workers int    `mapstructure:"workers" validate:"required,min=1"`

	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=panic fatal error warning info debug"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=text json"`

	LifespanEnabled  bool   `mapstructure:"lifespan_enabled"`
	AccessLogEnabled bool   `mapstructure:"access_log_enabled"`
	ReloaderEnabled  bool   `mapstructure:"reloader_enabled"`
	MetricsEnabled   bool   `mapstructure:"metrics_enabled"`
	MetricsAddr      string `mapstructure:"metrics_addr"`

	RootPath string `mapstructure:"root_path"`
}

// Default returns the settings the CLI binds flags onto before the config
// file/env layer is applied.
func Default() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             8000,
		Backlog:          4096,
		Workers:          1,
		LogLevel:         "info",
		LogFormat:        "text",
		LifespanEnabled:  true,
		AccessLogEnabled: false,
		ReloaderEnabled:  false,
		MetricsEnabled:   false,
		MetricsAddr:      "127.0.0.1:9090",
		RootPath:         "/",
	}
}

// Load reads configFile (if non-empty) and environment variables prefixed
// GASPI_ on top of Default(), then validates the result.
func Load(configFile string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("gaspi")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("backlog", cfg.Backlog)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("lifespan_enabled", cfg.LifespanEnabled)
	v.SetDefault("access_log_enabled", cfg.AccessLogEnabled)
	v.SetDefault("reloader_enabled", cfg.ReloaderEnabled)
	v.SetDefault("metrics_enabled", cfg.MetricsEnabled)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("root_path", cfg.RootPath)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LogLevelParsed resolves LogLevel to its logger.Level value.
func (c Config) LogLevelParsed() logger.Level { return logger.ParseLevel(c.LogLevel) }

// LogFormatParsed resolves LogFormat to its logger.Format value.
func (c Config) LogFormatParsed() logger.Format { return logger.ParseFormat(c.LogFormat) }

// TLSEnabled reports whether both certificate and key paths are set.
func (c Config) TLSEnabled() bool { return c.TLSCertFile != "" && c.TLSKeyFile != "" }

// TLSConfig builds the *tls.Config the server wraps its listener with, the
// one piece of TLS integration this core owns (library integration beyond
// this factory is an external collaborator). Returns nil, nil when TLS
// isn't configured.
func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// Banner renders the resolved settings as a pretty-printed block, mirroring
// the original server's config string representation.
func (c Config) Banner() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gaspi server configuration\n")
	fmt.Fprintf(&b, "  listen        %s:%d (backlog %d)\n", c.Host, c.Port, c.Backlog)
	fmt.Fprintf(&b, "  workers       %d\n", c.Workers)
	fmt.Fprintf(&b, "  tls           %v\n", c.TLSEnabled())
	fmt.Fprintf(&b, "  log           level=%s format=%s\n", c.LogLevel, c.LogFormat)
	fmt.Fprintf(&b, "  lifespan      %v\n", c.LifespanEnabled)
	fmt.Fprintf(&b, "  access log    %v\n", c.AccessLogEnabled)
	fmt.Fprintf(&b, "  reloader      %v\n", c.ReloaderEnabled)
	fmt.Fprintf(&b, "  metrics       enabled=%v addr=%s\n", c.MetricsEnabled, c.MetricsAddr)
	return b.String()
}
