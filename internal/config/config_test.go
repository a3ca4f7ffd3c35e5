package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("запись конфигурации: %v", err)
	}
	return path
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database_url: postgres://file/db
port: "9000"
telegram:
  api_id: 100
  api_hash: file-hash
dispatch:
  timezone: UTC
  tick_seconds: 10
  daily_message_limit: 50
  import_delay_before: [1, 2]
`)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("TELEGRAM_API_ID", "200")
	t.Setenv("API_TOKEN", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://env/db" {
		t.Fatalf("переменная окружения должна перекрывать файл: %s", cfg.DatabaseURL)
	}
	if cfg.Port != "9000" || cfg.Telegram.APIHash != "file-hash" || cfg.Telegram.APIID != 200 {
		t.Fatalf("неверные значения: %+v", cfg)
	}
	if cfg.APIToken != "secret" {
		t.Fatal("токен API не прочитан из окружения")
	}
	if cfg.Dispatch.DailyMessageLimit != 50 || cfg.TickInterval() != 10*time.Second {
		t.Fatalf("неверные параметры рассылки: %+v", cfg.Dispatch)
	}
	if Range(cfg.Dispatch.ImportDelayBefore) != [2]int{1, 2} || Range(cfg.Dispatch.ImportDelayAfter) != [2]int{4, 8} {
		t.Fatalf("неверные паузы импорта: %+v", cfg.Dispatch)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Dispatch.Timezone != "Europe/Moscow" || cfg.Dispatch.DailyImportLimit != 20 {
		t.Fatalf("неверные значения по умолчанию: %+v", cfg)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(writeConfig(t, "port: \"1\"\n")); err == nil {
		t.Fatal("без database_url ожидалась ошибка")
	}

	t.Setenv("DATABASE_URL", "postgres://env/db")
	if _, err := Load(writeConfig(t, "dispatch:\n  timezone: Mars/Olympus\n")); err == nil {
		t.Fatal("ожидалась ошибка часового пояса")
	}
	if _, err := Load(writeConfig(t, "dispatch:\n  import_delay_after: [5, 1]\n")); err == nil {
		t.Fatal("ожидалась ошибка диапазона")
	}
	t.Setenv("TELEGRAM_API_ID", "abc")
	if _, err := Load(writeConfig(t, "")); err == nil {
		t.Fatal("ожидалась ошибка TELEGRAM_API_ID")
	}
}
