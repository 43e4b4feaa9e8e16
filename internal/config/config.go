package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Reconcile modes for re-uploaded template sources.
const (
	ReconcilePreserve = "preserve"
	ReconcileReset    = "reset"
)

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		Driver string
		DSN    string
	}
	Log struct {
		Level       string
		Development bool
	}
	Extract struct {
		Timeout time.Duration
	}
	Render struct {
		Timeout     time.Duration
		BrowserBin  string
		DebuggerURL string
		BlankFiller string
	}
	Reconcile struct {
		Mode string
	}
	Auth struct {
		UserHeader string
	}
	Upload struct {
		MaxBytes int64
	}
}

// Load reads config from environment (DOCMERGE_ prefix) and optional docmerge.yaml.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("docmerge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional config file

	setDefaults(v)
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("extract.timeout", "30s")
	v.SetDefault("render.timeout", "60s")
	v.SetDefault("render.blank_filler", "____")
	v.SetDefault("reconcile.mode", ReconcilePreserve)
	v.SetDefault("auth.user_header", "X-Remote-User")
	v.SetDefault("upload.max_bytes", 32<<20)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Development = v.GetBool("log.development")
	cfg.Render.BrowserBin = v.GetString("render.browser_bin")
	cfg.Render.DebuggerURL = v.GetString("render.debugger_url")
	cfg.Render.BlankFiller = v.GetString("render.blank_filler")
	cfg.Reconcile.Mode = strings.ToLower(v.GetString("reconcile.mode"))
	cfg.Auth.UserHeader = v.GetString("auth.user_header")
	cfg.Upload.MaxBytes = v.GetInt64("upload.max_bytes")

	var err error
	if cfg.Extract.Timeout, err = time.ParseDuration(v.GetString("extract.timeout")); err != nil {
		return nil, fmt.Errorf("invalid DOCMERGE_EXTRACT_TIMEOUT: %w", err)
	}
	if cfg.Render.Timeout, err = time.ParseDuration(v.GetString("render.timeout")); err != nil {
		return nil, fmt.Errorf("invalid DOCMERGE_RENDER_TIMEOUT: %w", err)
	}

	if cfg.DB.Driver == "" {
		return nil, fmt.Errorf("DOCMERGE_DB_DRIVER is required (sqlite3, mysql, postgres)")
	}
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("DOCMERGE_DB_DSN is required")
	}
	switch cfg.Reconcile.Mode {
	case ReconcilePreserve, ReconcileReset:
	default:
		return nil, fmt.Errorf("invalid DOCMERGE_RECONCILE_MODE %q: must be preserve or reset", cfg.Reconcile.Mode)
	}
	if cfg.Auth.UserHeader == "" {
		return nil, fmt.Errorf("DOCMERGE_AUTH_USER_HEADER must not be empty")
	}
	if cfg.Upload.MaxBytes <= 0 {
		return nil, fmt.Errorf("DOCMERGE_UPLOAD_MAX_BYTES must be positive")
	}
	return cfg, nil
}
