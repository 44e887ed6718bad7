package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"healthsync/internal/domain/health"
)

const (
	defaultLogLevel     = "info"
	defaultEnv          = "local"
	defaultConfigDir    = ".healthsync"
	defaultDataFile     = "healthsync.db"
	defaultSyncInterval = 3600
	defaultBackfillDays = 30
	defaultHTTPTimeout  = 30
	defaultTimezone     = "Local"

	DefaultAPIURL = "https://api.metriport.com"
	SandboxAPIURL = "https://api.sandbox.metriport.com"
)

type Config struct {
	Env          string   `mapstructure:"app_env"`
	LogLevel     string   `mapstructure:"log_level"`
	ConfigDir    string   `mapstructure:"config_dir"`
	DataPath     string   `mapstructure:"data_path"`
	APIURL       string   `mapstructure:"api_url"`
	Sandbox      bool     `mapstructure:"sandbox"`
	ClientAPIKey string   `mapstructure:"client_api_key"`
	SyncInterval int      `mapstructure:"sync_interval_seconds"`
	BackfillDays int      `mapstructure:"backfill_days"`
	Timezone     string   `mapstructure:"timezone"`
	HTTPTimeout  int      `mapstructure:"http_timeout_seconds"`
	TrackedTypes []string `mapstructure:"tracked_types"`
	FixturePath  string   `mapstructure:"fixture_path"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", defaultSyncInterval)
	viper.SetDefault("BACKFILL_DAYS", defaultBackfillDays)
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", defaultHTTPTimeout)
	viper.SetDefault("TIMEZONE", defaultTimezone)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, defaultDataFile)
	}

	cfg := &Config{
		Env:          viper.GetString("APP_ENV"),
		LogLevel:     viper.GetString("LOG_LEVEL"),
		ConfigDir:    configDir,
		DataPath:     dataPath,
		APIURL:       strings.TrimRight(viper.GetString("API_URL"), "/"),
		Sandbox:      viper.GetBool("SANDBOX"),
		ClientAPIKey: viper.GetString("CLIENT_API_KEY"),
		SyncInterval: viper.GetInt("SYNC_INTERVAL_SECONDS"),
		BackfillDays: viper.GetInt("BACKFILL_DAYS"),
		Timezone:     viper.GetString("TIMEZONE"),
		HTTPTimeout:  viper.GetInt("HTTP_TIMEOUT_SECONDS"),
		TrackedTypes: splitList(viper.GetString("TRACKED_TYPES")),
		FixturePath:  viper.GetString("FIXTURE_PATH"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval_seconds должен быть положительным")
	}
	if c.BackfillDays <= 0 {
		return fmt.Errorf("backfill_days должен быть положительным")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout_seconds должен быть положительным")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("неизвестная временная зона %q: %w", c.Timezone, err)
	}
	if _, err := health.CatalogFor(c.DataTypes()); err != nil {
		return fmt.Errorf("tracked_types: %w", err)
	}
	return nil
}

// DataTypes возвращает отслеживаемые статистические типы. Пустой список означает
// все типы каталога. Сон и тренировки синхронизируются всегда, поэтому из списка
// они отбрасываются.
func (c *Config) DataTypes() []health.DataType {
	out := make([]health.DataType, 0, len(c.TrackedTypes))
	for _, t := range c.TrackedTypes {
		dt := health.DataType(t)
		if dt.IsChangeFeed() {
			continue
		}
		out = append(out, dt)
	}
	return out
}

// Location возвращает зону, в которой режутся дневные корзины.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ResolveAPIURL возвращает адрес API с учетом sandbox, если адрес не задан явно.
func ResolveAPIURL(apiURL string, sandbox bool) string {
	if apiURL != "" {
		return strings.TrimRight(apiURL, "/")
	}
	if sandbox {
		return SandboxAPIURL
	}
	return DefaultAPIURL
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
