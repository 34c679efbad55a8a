// Package config reads server settings from the environment, after loading an
// optional .env file.
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

type Config struct {
	Addr     string
	Env      string
	LogLevel string

	StoreDriver string
	StorePath   string
	DatabaseURL string

	PersistInterval time.Duration
	GCInterval      time.Duration
	RoomTTL         time.Duration
	SavedRoomTTL    time.Duration

	WSRatePerSec float64
	WSRateBurst  int

	AllowedOrigins []string
}

func (c Config) Production() bool { return c.Env == "production" }

// Load reads files (default ".env") into the environment without overriding
// variables that are already set, then parses the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv parses settings through getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}
	c := Config{
		Addr:            p.str("ADDR", ":8080"),
		Env:             p.str("ENV", "development"),
		LogLevel:        p.str("LOG_LEVEL", "info"),
		StoreDriver:     strings.ToLower(p.str("STORE_DRIVER", "file")),
		DatabaseURL:     p.str("DATABASE_URL", ""),
		PersistInterval: p.duration("PERSIST_INTERVAL", 30*time.Second),
		GCInterval:      p.duration("GC_INTERVAL", time.Minute),
		RoomTTL:         p.duration("ROOM_TTL", 24*time.Hour),
		SavedRoomTTL:    p.duration("SAVED_ROOM_TTL", 7*24*time.Hour),
		WSRatePerSec:    p.float("WS_RATE_PER_SEC", 10),
		WSRateBurst:     p.int("WS_RATE_BURST", 20),
		AllowedOrigins:  p.list("ALLOWED_ORIGINS"),
	}

	defaultPath := "data/rooms.json"
	if c.StoreDriver == "sqlite" {
		defaultPath = "data/rooms.db"
	}
	c.StorePath = p.str("STORE_PATH", defaultPath)

	switch c.StoreDriver {
	case "file", "sqlite", "none":
	case "postgres":
		if c.DatabaseURL == "" {
			p.fail("DATABASE_URL", errors.New("required for postgres"))
		}
	default:
		p.fail("STORE_DRIVER", fmt.Errorf("unknown driver %q", c.StoreDriver))
	}
	if c.SavedRoomTTL < c.RoomTTL {
		p.fail("SAVED_ROOM_TTL", errors.New("shorter than ROOM_TTL"))
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	if d <= 0 {
		p.fail(key, errors.New("must be positive"))
		return def
	}
	return d
}

func (p *parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		p.fail(key, fmt.Errorf("want a positive number, got %q", v))
		return def
	}
	return f
}

func (p *parser) int(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.fail(key, fmt.Errorf("want a positive integer, got %q", v))
		return def
	}
	return n
}

func (p *parser) list(key string) []string {
	var out []string
	for _, s := range strings.Split(p.getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
