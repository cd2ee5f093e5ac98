// Package config loads deployment settings from the environment and an optional .env file
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrMissingLocal is returned when the local SQL_* settings are incomplete
	ErrMissingLocal = errors.New("missing local database settings (SQL_SERVER, SQL_DATABASE, SQL_USER)")
	// ErrMissingRemote is returned when the remote REMOTE_SQL_* settings are incomplete
	ErrMissingRemote = errors.New("missing remote database settings (REMOTE_SQL_DATABASE, REMOTE_SQL_USER)")
)

// Keys lists every environment variable the application reads.
var Keys = []string{
	"SQL_SERVER", "SQL_PORT", "SQL_DATABASE", "SQL_USER", "SQL_PASSWORD",
	"REMOTE_SQL_SERVER", "REMOTE_SQL_PORT", "REMOTE_SQL_DATABASE", "REMOTE_SQL_USER", "REMOTE_SQL_PASSWORD",
	"VNC_EXE", "VNC_PASSWORD",
	"LOG_LEVEL", "STATUS_FILE", "EXPORT_DIR", "HISTORY_DB",
	"TELEGRAM_BOT_TOKEN", "OPENAI_API_KEY", "NIGHT_SYNC_SCHEDULE", "NIGHT_SYNC_WORKERS",
	"DB_RETRIES", "DB_RETRY_BACKOFF", "DB_LOGIN_TIMEOUT", "DB_QUERY_TIMEOUT",
}

var secretKeys = map[string]bool{
	"SQL_PASSWORD":        true,
	"REMOTE_SQL_PASSWORD": true,
	"VNC_PASSWORD":        true,
	"TELEGRAM_BOT_TOKEN":  true,
	"OPENAI_API_KEY":      true,
}

// Database holds one SQL Server connection profile
type Database struct {
	Server   string
	Port     int
	Database string
	User     string
	Password string
}

// VNC holds the remote desktop viewer settings
type VNC struct {
	Exe      string
	Password string
}

// Config is the full application configuration
type Config struct {
	Local  Database
	Remote Database

	Retries      int
	RetryBackoff time.Duration
	LoginTimeout time.Duration
	QueryTimeout time.Duration

	VNC VNC

	LogLevel          string
	StatusFile        string
	ExportDir         string
	HistoryDB         string
	TelegramToken     string
	OpenAIAPIKey      string // empty disables free-text chat in the bot
	NightSyncSchedule string
	NightSyncWorkers  int

	// EnvFile is the .env file that was loaded, empty if none was found
	EnvFile string
}

// Load reads the first .env file found next to the executable or in the
// working directory (or one of its parents), then builds the Config from
// the environment. Variables already set in the environment win.
func Load() (*Config, error) {
	return LoadFrom(candidates())
}

// LoadFrom behaves like Load but only considers the given .env candidates
func LoadFrom(paths []string) (*Config, error) {
	envFile := ""
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
		envFile = p
		break
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Local: Database{
			Server:   get(v, "SQL_SERVER"),
			Port:     v.GetInt("SQL_PORT"),
			Database: get(v, "SQL_DATABASE"),
			User:     get(v, "SQL_USER"),
			Password: get(v, "SQL_PASSWORD"),
		},
		Remote: Database{
			Server:   get(v, "REMOTE_SQL_SERVER"),
			Port:     v.GetInt("REMOTE_SQL_PORT"),
			Database: get(v, "REMOTE_SQL_DATABASE"),
			User:     get(v, "REMOTE_SQL_USER"),
			Password: get(v, "REMOTE_SQL_PASSWORD"),
		},
		Retries:      v.GetInt("DB_RETRIES"),
		RetryBackoff: v.GetDuration("DB_RETRY_BACKOFF"),
		LoginTimeout: v.GetDuration("DB_LOGIN_TIMEOUT"),
		QueryTimeout: v.GetDuration("DB_QUERY_TIMEOUT"),
		VNC: VNC{
			Exe:      get(v, "VNC_EXE"),
			Password: get(v, "VNC_PASSWORD"),
		},
		LogLevel:          get(v, "LOG_LEVEL"),
		StatusFile:        get(v, "STATUS_FILE"),
		ExportDir:         expandHome(get(v, "EXPORT_DIR")),
		HistoryDB:         get(v, "HISTORY_DB"),
		TelegramToken:     get(v, "TELEGRAM_BOT_TOKEN"),
		OpenAIAPIKey:      get(v, "OPENAI_API_KEY"),
		NightSyncSchedule: get(v, "NIGHT_SYNC_SCHEDULE"),
		NightSyncWorkers:  v.GetInt("NIGHT_SYNC_WORKERS"),
		EnvFile:           envFile,
	}

	if cfg.Local.Port <= 0 {
		return nil, fmt.Errorf("invalid SQL_PORT %q", os.Getenv("SQL_PORT"))
	}
	if cfg.Remote.Port <= 0 {
		return nil, fmt.Errorf("invalid REMOTE_SQL_PORT %q", os.Getenv("REMOTE_SQL_PORT"))
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.NightSyncWorkers < 1 {
		cfg.NightSyncWorkers = 1
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SQL_PORT", 1433)
	v.SetDefault("REMOTE_SQL_PORT", 1433)
	v.SetDefault("REMOTE_SQL_DATABASE", "MTOnemineClient")
	v.SetDefault("REMOTE_SQL_USER", "sa")
	v.SetDefault("VNC_EXE", `C:\Program Files\TightVNC\tvnviewer.exe`)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STATUS_FILE", filepath.Join("data", "listado_actual.txt"))
	v.SetDefault("EXPORT_DIR", filepath.Join("~", "Desktop"))
	v.SetDefault("HISTORY_DB", filepath.Join("data", "sync_history.db"))
	v.SetDefault("NIGHT_SYNC_SCHEDULE", "30 7 * * *")
	v.SetDefault("NIGHT_SYNC_WORKERS", 4)
	v.SetDefault("DB_RETRIES", 3)
	v.SetDefault("DB_RETRY_BACKOFF", 2*time.Second)
	v.SetDefault("DB_LOGIN_TIMEOUT", 8*time.Second)
	v.SetDefault("DB_QUERY_TIMEOUT", 30*time.Second)
}

func get(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

func candidates() []string {
	var paths []string
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), ".env"))
	}
	if wd, err := os.Getwd(); err == nil {
		for dir := wd; ; dir = filepath.Dir(dir) {
			paths = append(paths, filepath.Join(dir, ".env"))
			if filepath.Dir(dir) == dir {
				break
			}
		}
	}
	return paths
}

// ValidateLocal checks that the local profile can be used to connect
func (c *Config) ValidateLocal() error {
	if c.Local.Server == "" || c.Local.Database == "" || c.Local.User == "" {
		return ErrMissingLocal
	}
	return nil
}

// RemoteFor returns the remote profile pointed at ip. An empty ip falls
// back to REMOTE_SQL_SERVER.
func (c *Config) RemoteFor(ip string) (Database, error) {
	db := c.Remote
	if ip != "" {
		db.Server = ip
	}
	if db.Server == "" || db.Database == "" || db.User == "" {
		return Database{}, ErrMissingRemote
	}
	return db, nil
}

// Debug returns one KEY=<SET>/<MISSING> line per known key. Secrets are never printed.
func Debug() string {
	var b strings.Builder
	for i, key := range Keys {
		if i > 0 {
			b.WriteString("\n")
		}
		val, ok := os.LookupEnv(key)
		val = strings.TrimSpace(val)
		if !ok || val == "" {
			b.WriteString(key + "=<MISSING>")
			continue
		}
		if secretKeys[key] {
			b.WriteString(key + "=<SET>")
			continue
		}
		b.WriteString(fmt.Sprintf("%s=<SET> %q", key, val))
	}
	return b.String()
}
