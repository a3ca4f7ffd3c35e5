package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // часовой пояс расписания не должен зависеть от системной базы zoneinfo

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

// DefaultPath используется, если CONFIG_PATH не задан.
const DefaultPath = "config.yaml"

// Config содержит настройки сервиса. Значения из файла перекрываются переменными окружения.
type Config struct {
	DatabaseURL string         `yaml:"database_url"`
	Port        string         `yaml:"port"`
	APIToken    string         `yaml:"api_token"`
	LogLevel    string         `yaml:"log_level"`
	LogJSON     bool           `yaml:"log_json"`
	Telegram    TelegramConfig `yaml:"telegram"`
	Dispatch    DispatchConfig `yaml:"dispatch"`
}

// TelegramConfig задаёт API-ключи для аккаунтов без собственных.
type TelegramConfig struct {
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`
}

// DispatchConfig задаёт параметры рассылки.
type DispatchConfig struct {
	Timezone          string `yaml:"timezone"`
	TickSeconds       int    `yaml:"tick_seconds"`
	DailyMessageLimit int    `yaml:"daily_message_limit"`
	DailyImportLimit  int    `yaml:"daily_import_limit"`
	MessagesPerHour   int    `yaml:"messages_per_hour"`
	// Диапазоны в секундах: [от, до]
	ImportDelayBefore []int `yaml:"import_delay_before"`
	ImportDelayAfter  []int `yaml:"import_delay_after"`
	StartAllDelay     []int `yaml:"start_all_delay"`
}

func defaults() Config {
	return Config{
		Port:     "8080",
		LogLevel: "info",
		Dispatch: DispatchConfig{
			Timezone:          "Europe/Moscow",
			TickSeconds:       5,
			DailyMessageLimit: 200,
			DailyImportLimit:  20,
			ImportDelayBefore: []int{2, 5},
			ImportDelayAfter:  []int{4, 8},
			StartAllDelay:     []int{1, 3},
		},
	}
}

// Load читает .env, затем YAML-файл path (если он есть), затем переменные окружения.
// Пустой path означает CONFIG_PATH или DefaultPath.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.Port, "PORT")
	setString(&c.APIToken, "API_TOKEN")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Telegram.APIHash, "TELEGRAM_API_HASH")
	setString(&c.Dispatch.Timezone, "DISPATCH_TIMEZONE")
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_API_ID")); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TELEGRAM_API_ID: %w", err)
		}
		c.Telegram.APIID = id
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required (DATABASE_URL)")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for name, r := range map[string][]int{
		"import_delay_before": c.Dispatch.ImportDelayBefore,
		"import_delay_after":  c.Dispatch.ImportDelayAfter,
		"start_all_delay":     c.Dispatch.StartAllDelay,
	} {
		if len(r) != 2 || r[0] < 0 || r[1] < r[0] {
			return fmt.Errorf("dispatch.%s: expected [min, max], got %v", name, r)
		}
	}
	return nil
}

// Location возвращает часовой пояс календарного автозапуска.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Dispatch.Timezone)
	if err != nil {
		return nil, fmt.Errorf("dispatch.timezone %q: %w", c.Dispatch.Timezone, err)
	}
	return loc, nil
}

// TickInterval возвращает период обхода аккаунтов.
func (c Config) TickInterval() time.Duration {
	if c.Dispatch.TickSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Dispatch.TickSeconds) * time.Second
}

// Range переводит диапазон из конфигурации в пару [от, до].
func Range(r []int) [2]int {
	if len(r) != 2 {
		return [2]int{}
	}
	return [2]int{r[0], r[1]}
}
