package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	authConfig "github.com/iurnickita/giftcards/internal/auth/config"
	handlerConfig "github.com/iurnickita/giftcards/internal/handler/config"
	loggerConfig "github.com/iurnickita/giftcards/internal/logger/config"
	reminderConfig "github.com/iurnickita/giftcards/internal/reminder/config"
	serviceConfig "github.com/iurnickita/giftcards/internal/service/config"
	extractConfig "github.com/iurnickita/giftcards/internal/service/extractclient/config"
	storeConfig "github.com/iurnickita/giftcards/internal/store/config"
)

type Config struct {
	Handler  handlerConfig.Config
	Service  serviceConfig.Config
	Store    storeConfig.Config
	Logger   loggerConfig.Config
	Auth     authConfig.Config
	Extract  extractConfig.Config
	Reminder reminderConfig.Config
}

const envPrefix = "GIFTCARDS"

// GetConfig читает настройки из переменных окружения GIFTCARDS_*.
func GetConfig() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// значения по умолчанию
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("autosave_delay", "2s")
	v.SetDefault("watch_backup", true)
	v.SetDefault("token_ttl", "720h")
	v.SetDefault("extract_provider", extractConfig.ProviderNone)
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("extract_timeout", "30s")
	v.SetDefault("reminder_schedule", "0 9 * * *")
	v.SetDefault("reminder_window", "168h")
	v.SetDefault("smtp_port", "587")

	cfg := Config{
		Handler: handlerConfig.Config{
			ServerAddr: v.GetString("server_addr"),
		},
		Service: serviceConfig.Config{
			AutosaveDelay: v.GetDuration("autosave_delay"),
			WatchBackup:   v.GetBool("watch_backup"),
		},
		Store: storeConfig.Config{
			Driver: v.GetString("db_driver"),
			DBDsn:  v.GetString("db_dsn"),
		},
		Logger: loggerConfig.Config{
			LogLevel: v.GetString("log_level"),
		},
		Auth: authConfig.Config{
			UnlockPIN:   v.GetString("unlock_pin"),
			TokenSecret: v.GetString("token_secret"),
			TokenTTL:    v.GetDuration("token_ttl"),
		},
		Extract: extractConfig.Config{
			Provider:     v.GetString("extract_provider"),
			GeminiAPIKey: v.GetString("gemini_api_key"),
			GeminiModel:  v.GetString("gemini_model"),
			ExtractAddr:  v.GetString("extract_addr"),
			Timeout:      v.GetDuration("extract_timeout"),
		},
		Reminder: reminderConfig.Config{
			Schedule:     v.GetString("reminder_schedule"),
			Window:       v.GetDuration("reminder_window"),
			SMTPHost:     v.GetString("smtp_host"),
			SMTPPort:     v.GetString("smtp_port"),
			SMTPUsername: v.GetString("smtp_username"),
			SMTPPassword: v.GetString("smtp_password"),
			SenderEmail:  v.GetString("sender_email"),
			Recipient:    v.GetString("reminder_recipient"),
		},
	}

	if cfg.Store.DBDsn == "" && cfg.Store.Driver == "sqlite" {
		dsn, err := defaultDBDsn()
		if err != nil {
			return Config{}, err
		}
		cfg.Store.DBDsn = dsn
	}
	return cfg, nil
}

// база по умолчанию лежит в каталоге настроек пользователя
func defaultDBDsn() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "giftcards.db", nil
	}
	dir = filepath.Join(dir, "giftcards")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "giftcards.db"), nil
}
