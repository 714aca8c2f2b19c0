// Package config 讀取 YAML 設定檔，再以 .env / LEDGER_* 環境變數覆寫
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-account-ledger/pkg/mysql"
	"github.com/JoeShih716/go-account-ledger/pkg/postgres"
)

// 儲存後端
const (
	BackendMemory   = "memory"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Store    StoreConfig     `yaml:"store"`
	MySQL    mysql.Config    `yaml:"mysql"`
	Postgres postgres.Config `yaml:"postgres"`
	Ledger   LedgerConfig    `yaml:"ledger"`
	Recovery RecoveryConfig  `yaml:"recovery"`
	History  HistoryConfig   `yaml:"history"`
	Log      LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type StoreConfig struct {
	// Backend memory | mysql | postgres
	Backend string `yaml:"backend"`
	// DataDir memory 後端的 WAL 目錄，空字串表示不落地
	DataDir string `yaml:"data_dir"`
	// VisibilityDelay 模擬交易紀錄的讀取延遲 (只有 memory 後端)
	VisibilityDelay time.Duration `yaml:"visibility_delay"`
}

type LedgerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
}

type RecoveryConfig struct {
	Interval    time.Duration `yaml:"interval"`
	GracePeriod time.Duration `yaml:"grace_period"`
	BatchSize   int           `yaml:"batch_size"`
}

type HistoryConfig struct {
	PendingTTL time.Duration `yaml:"pending_ttl"`
}

type LogConfig struct {
	// Level debug | info | warn | error
	Level string `yaml:"level"`
	// Format json | text
	Format string `yaml:"format"`
}

// Load 讀取 path (不存在時全部用預設值)，接著載入 .env 並套用環境變數
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env 不存在是正常的 (正式環境直接給環境變數)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults 補上未設定的欄位
func (c *Config) ApplyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":50051"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Ledger.MaxAttempts == 0 {
		c.Ledger.MaxAttempts = 3
	}
	if c.Ledger.StoreTimeout == 0 {
		c.Ledger.StoreTimeout = 2 * time.Second
	}
	if c.Recovery.Interval == 0 {
		c.Recovery.Interval = 5 * time.Second
	}
	if c.Recovery.GracePeriod == 0 {
		c.Recovery.GracePeriod = 30 * time.Second
	}
	if c.Recovery.BatchSize == 0 {
		c.Recovery.BatchSize = 50
	}
	if c.History.PendingTTL == 0 {
		c.History.PendingTTL = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.MySQL.ApplyDefaults()
	c.Postgres.ApplyDefaults()
}

// Validate 檢查設定值
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendMySQL:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres backend requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("ledger.max_attempts must be at least 1, got %d", c.Ledger.MaxAttempts)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// applyEnv LEDGER_* 環境變數覆寫設定檔
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"LEDGER_LISTEN":         &c.Server.Listen,
		"LEDGER_STORE_BACKEND":  &c.Store.Backend,
		"LEDGER_DATA_DIR":       &c.Store.DataDir,
		"LEDGER_MYSQL_DSN":      &c.MySQL.RawDSN,
		"LEDGER_MYSQL_HOST":     &c.MySQL.Host,
		"LEDGER_MYSQL_USER":     &c.MySQL.User,
		"LEDGER_MYSQL_PASSWORD": &c.MySQL.Password,
		"LEDGER_MYSQL_DB":       &c.MySQL.DBName,
		"LEDGER_POSTGRES_URL":   &c.Postgres.URL,
		"LEDGER_LOG_LEVEL":      &c.Log.Level,
		"LEDGER_LOG_FORMAT":     &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("LEDGER_MYSQL_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEDGER_MYSQL_PORT: %w", err)
		}
		c.MySQL.Port = port
	}
	if v, ok := os.LookupEnv("LEDGER_STORE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LEDGER_STORE_TIMEOUT: %w", err)
		}
		c.Ledger.StoreTimeout = d
	}
	return nil
}

// NewLogger 依 log 設定建立 slog.Logger
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
