package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config настройки стенда из окружения.
type Config struct {
	APIBaseURL  string // базовый URL трекингового сервиса
	APIInsecure bool   // не проверять TLS-сертификат (самоподписанный)

	MotorPort   string // последовательный порт контроллера мотора
	CameraIndex int    // индекс USB-камеры

	HistoryDB string // путь к sqlite-журналу прогонов

	TelegramToken  string // пустой токен выключает уведомления
	TelegramChatID int64
}

// Load читает настройки из .env и переменных окружения.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:    getenv("RIG_API_BASE_URL", "http://eng-ubuntu.mkmorse.local/api"),
		MotorPort:     getenv("RIG_MOTOR_PORT", "/dev/ttyUSB0"),
		HistoryDB:     getenv("RIG_HISTORY_DB", "inspection-history.db"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
	}

	cfg.APIInsecure = os.Getenv("RIG_API_INSECURE") == "1"

	if v := os.Getenv("RIG_CAMERA_INDEX"); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("RIG_CAMERA_INDEX: %w", err)
		}
		cfg.CameraIndex = idx
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
