package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration shared by the server, the CLI and the migrator.
type Config struct {
	DatabaseURL      string        `mapstructure:"database_url"`
	ServerPort       string        `mapstructure:"server_port"`
	AllowedOrigins   string        `mapstructure:"allowed_origins"`
	TrustedProxies   string        `mapstructure:"trusted_proxies"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	RedisURL         string        `mapstructure:"redis_url"`
	NotifyQueue      string        `mapstructure:"notify_queue"`
	StockLockTimeout time.Duration `mapstructure:"stock_lock_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	DBMaxConns       int32         `mapstructure:"db_max_conns"`
}

var keys = []string{
	"database_url",
	"server_port",
	"allowed_origins",
	"trusted_proxies",
	"jwt_secret",
	"log_level",
	"log_format",
	"redis_url",
	"notify_queue",
	"stock_lock_timeout",
	"shutdown_timeout",
	"db_max_conns",
}

// Load reads .env (if present) and the process environment.
// Values in the environment win over values in .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("notify_queue", "logistics:notifications")
	v.SetDefault("stock_lock_timeout", "5s")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("db_max_conns", 20)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.StockLockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("STOCK_LOCK_TIMEOUT must be positive, got %s", c.StockLockTimeout))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TrustedProxyPrefixes parses TRUSTED_PROXIES, a comma-separated list of IPs or CIDRs.
// Only peers inside these prefixes may set X-Forwarded-For.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(c.TrustedProxies, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid CIDR %q: %w", part, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q: %w", part, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
