// MIT License
//
// # Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment does not override them.
const (
	DefaultCacheSize       = 50000
	DefaultCacheTTL        = time.Hour
	DefaultJanitorInterval = 5 * time.Minute
	DefaultLocale          = "en"
)

type GeoIPConfig struct {
	ASNPath  string
	CityPath string
	Locale   string
	Verify   bool
	Watch    bool
}

type CacheConfig struct {
	Size            int
	TTL             time.Duration
	JanitorInterval time.Duration
}

type DatabaseConfig struct {
	Enabled         bool
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLife     time.Duration
	RetentionDays   int
	CleanupInterval time.Duration
	VacuumEnabled   bool
	WarmLimit       int
}

type ServerConfig struct {
	Host              string
	Port              int
	TrustForwardedFor bool
	ShutdownTimeout   time.Duration
}

type Config struct {
	GeoIP          GeoIPConfig
	Cache          CacheConfig
	Database       DatabaseConfig
	Server         ServerConfig
	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
}

// Load reads the given env files (".env" when none are given) and builds the
// configuration from the environment. Missing env files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", file, err)
		}
	}

	env := &envReader{}
	cfg := &Config{
		GeoIP: GeoIPConfig{
			ASNPath:  env.String("GEOIP_ASN_DB", "geolite/GeoLite2-ASN.mmdb.gz"),
			CityPath: env.String("GEOIP_CITY_DB", "geolite/GeoLite2-City.mmdb.gz"),
			Locale:   env.String("GEOIP_LOCALE", DefaultLocale),
			Verify:   env.Bool("GEOIP_VERIFY", false),
			Watch:    env.Bool("GEOIP_WATCH", true),
		},
		Cache: CacheConfig{
			Size:            env.Int("GEOIP_CACHE_SIZE", DefaultCacheSize),
			TTL:             env.Duration("GEOIP_CACHE_TTL", DefaultCacheTTL),
			JanitorInterval: env.Duration("GEOIP_CACHE_JANITOR", DefaultJanitorInterval),
		},
		Database: DatabaseConfig{
			Enabled:         env.Bool("DB_ENABLED", false),
			Path:            env.String("DB_PATH", "geolynx.db"),
			MaxOpenConns:    env.Int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    env.Int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLife:     env.Duration("DB_CONN_MAX_LIFE", time.Hour),
			RetentionDays:   env.Int("DB_RETENTION_DAYS", 30),
			CleanupInterval: env.Duration("DB_CLEANUP_INTERVAL", time.Hour),
			VacuumEnabled:   env.Bool("DB_VACUUM_ENABLED", false),
			WarmLimit:       env.Int("DB_WARM_LIMIT", DefaultCacheSize),
		},
		Server: ServerConfig{
			Host:              env.String("SERVER_HOST", "0.0.0.0"),
			Port:              env.Int("SERVER_PORT", 8745),
			TrustForwardedFor: env.Bool("TRUST_FORWARDED_FOR", true),
			ShutdownTimeout:   env.Duration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		MetricsEnabled: env.Bool("METRICS_ENABLED", true),
		LogLevel:       env.String("LOG_LEVEL", "info"),
		LogFormat:      env.String("LOG_FORMAT", "text"),
	}

	if err := env.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.Size <= 0 {
		errs = append(errs, fmt.Errorf("GEOIP_CACHE_SIZE must be positive, got %d", c.Cache.Size))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("GEOIP_CACHE_TTL must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.JanitorInterval < 0 {
		errs = append(errs, fmt.Errorf("GEOIP_CACHE_JANITOR must not be negative, got %s", c.Cache.JanitorInterval))
	}
	if c.GeoIP.ASNPath == "" && c.GeoIP.CityPath == "" {
		errs = append(errs, errors.New("at least one of GEOIP_ASN_DB or GEOIP_CITY_DB must be set"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port))
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, errors.New("DB_PATH is required when DB_ENABLED=true"))
	}
	if c.Database.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("DB_RETENTION_DAYS must not be negative, got %d", c.Database.RetentionDays))
	}
	return errors.Join(errs...)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// envReader collects parse errors so Load can report every bad variable at once.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (r *envReader) String(key, defaultValue string) string {
	if value, ok := r.lookup(key); ok {
		return value
	}
	return defaultValue
}

func (r *envReader) Int(key string, defaultValue int) int {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return n
}

func (r *envReader) Bool(key string, defaultValue bool) bool {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, value))
		return defaultValue
	}
	return b
}

// Duration accepts Go duration strings ("90m") or a bare number of seconds.
func (r *envReader) Duration(key string, defaultValue time.Duration) time.Duration {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return d
}

func (r *envReader) Err() error {
	return errors.Join(r.errs...)
}
