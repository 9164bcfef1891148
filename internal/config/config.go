package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Log     LogConfig
	Server  ServerConfig
	Db      DbConfig
	Redis   RedisConfig
	Sandbox SandboxConfig
	Limits  LimitsConfig
	Records RecordsConfig
}

// LogConfig selects the zerolog level and output: "console" or "json".
type LogConfig struct {
	Level  zerolog.Level
	Format string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DbConfig is optional: an empty Host disables the Postgres store.
type DbConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c DbConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig is optional: an empty Addr disables publishing and the live
// feed.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type SandboxConfig struct {
	ScratchRoot    string
	MemoryMB       int
	MaxMemoryMB    int
	NanoCPUs       int64
	PidsLimit      int64
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	MaxRunTimeout  time.Duration
	MaxSourceBytes int
	MaxOutputBytes int
	MaxTestCases   int
	User           string
	PullImages     bool
}

type LimitsConfig struct {
	GlobalRPS     float64
	ClientRPS     float64
	ClientBurst   int
	MaxConcurrent int
	// TrustedProxies may set X-Forwarded-For; empty means nobody may.
	TrustedProxies []netip.Prefix
}

// RecordsConfig sizes the queue that hands finished runs to the sinks.
type RecordsConfig struct {
	QueueSize int
	Workers   int
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var p parser
	conf := &Config{
		Log: LogConfig{
			Level:  p.level("LOG_LEVEL", zerolog.InfoLevel),
			Format: p.str("LOG_FORMAT", "console"),
		},
		Server: ServerConfig{
			Port:         p.str("PORT", "8080"),
			ReadTimeout:  p.integer("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: p.integer("SERVER_WRITE_TIMEOUT", 120),
			IdleTimeout:  p.integer("SERVER_IDLE_TIMEOUT", 60),
		},
		Db: DbConfig{
			Host:     p.str("DB_HOST", ""),
			Port:     p.integer("DB_PORT", 5432),
			User:     p.str("DB_USER", "postgres"),
			Password: p.str("DB_PASSWORD", ""),
			Name:     p.str("DB_NAME", "judgexec"),
			SSLMode:  p.str("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     p.str("REDIS_ADDR", ""),
			Password: p.str("REDIS_PASSWORD", ""),
			DB:       p.integer("REDIS_DB", 0),
			Channel:  p.str("REDIS_CHANNEL", "judgexec:runs"),
		},
		Sandbox: SandboxConfig{
			ScratchRoot:    p.str("SCRATCH_ROOT", os.TempDir()),
			MemoryMB:       p.integer("SANDBOX_MEMORY_MB", 256),
			MaxMemoryMB:    p.integer("SANDBOX_MAX_MEMORY_MB", 512),
			NanoCPUs:       int64(p.number("SANDBOX_CPUS", 1) * 1e9),
			PidsLimit:      int64(p.integer("SANDBOX_PIDS_LIMIT", 64)),
			CompileTimeout: p.duration("SANDBOX_COMPILE_TIMEOUT", 30*time.Second),
			RunTimeout:     p.duration("SANDBOX_RUN_TIMEOUT", 2*time.Second),
			MaxRunTimeout:  p.duration("SANDBOX_MAX_RUN_TIMEOUT", 10*time.Second),
			MaxSourceBytes: p.integer("MAX_SOURCE_BYTES", 64*1024),
			MaxOutputBytes: p.integer("MAX_OUTPUT_BYTES", 64*1024),
			MaxTestCases:   p.integer("MAX_TEST_CASES", 100),
			User:           p.str("SANDBOX_USER", "65534:65534"),
			PullImages:     p.flag("SANDBOX_PULL_IMAGES", true),
		},
		Limits: LimitsConfig{
			GlobalRPS:      p.number("RATE_GLOBAL_RPS", 100),
			ClientRPS:      p.number("RATE_CLIENT_RPS", 10),
			ClientBurst:    p.integer("RATE_CLIENT_BURST", 20),
			MaxConcurrent:  p.integer("MAX_CONCURRENT_EXECUTIONS", 20),
			TrustedProxies: p.prefixes("TRUSTED_PROXIES"),
		},
		Records: RecordsConfig{
			QueueSize: p.integer("RECORD_QUEUE_SIZE", 256),
			Workers:   p.integer("RECORD_WORKERS", 2),
		},
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	s := c.Sandbox
	switch {
	case s.MemoryMB <= 0 || s.MaxMemoryMB < s.MemoryMB:
		return fmt.Errorf("invalid sandbox memory: %d MB, max %d MB", s.MemoryMB, s.MaxMemoryMB)
	case s.RunTimeout <= 0 || s.MaxRunTimeout < s.RunTimeout:
		return fmt.Errorf("invalid run timeout: %s, max %s", s.RunTimeout, s.MaxRunTimeout)
	case s.CompileTimeout <= 0:
		return fmt.Errorf("invalid compile timeout: %s", s.CompileTimeout)
	case s.MaxSourceBytes <= 0 || s.MaxOutputBytes <= 0:
		return errors.New("source and output caps must be positive")
	case c.Limits.MaxConcurrent <= 0:
		return errors.New("MAX_CONCURRENT_EXECUTIONS must be positive")
	case c.Log.Format != "console" && c.Log.Format != "json":
		return fmt.Errorf("invalid LOG_FORMAT %q: want console or json", c.Log.Format)
	case c.Records.QueueSize < 0:
		return errors.New("RECORD_QUEUE_SIZE must not be negative")
	}
	return nil
}

// parser records the first malformed variable and returns defaults after it.
type parser struct {
	err error
}

func (p *parser) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != "" && p.err == nil
}

func (p *parser) fail(key, value string, err error) {
	p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) number(key string, def float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) flag(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

// duration accepts Go durations ("1500ms") or plain milliseconds.
func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) level(key string, def zerolog.Level) zerolog.Level {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(v))
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return lvl
}

// prefixes reads a comma separated list of addresses and CIDR ranges. A bare
// address is a single host range.
func (p *parser) prefixes(key string) []netip.Prefix {
	v, ok := p.lookup(key)
	if !ok {
		return nil
	}
	var out []netip.Prefix
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			pfx, err := netip.ParsePrefix(item)
			if err != nil {
				p.fail(key, v, err)
				return nil
			}
			out = append(out, pfx.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			p.fail(key, v, err)
			return nil
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}
