package config

import (
	"os"
	"strconv"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort string

	MySQLDSN  string
	RedisAddr string

	CartDir string

	WorkerCount     int
	QueueSize       int
	ReserveAttempts int
}

func Load() Config {
	return Config{
		AppEnv:          getEnv("APP_ENV", "dev"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPPort:        getEnv("HTTP_PORT", ":8080"),
		MySQLDSN:        getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/veloure?parseTime=true"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		CartDir:         getEnv("CART_DIR", "./data/cart"),
		WorkerCount:     getEnvInt("WORKER_COUNT", 10),
		QueueSize:       getEnvInt("QUEUE_SIZE", 10000),
		ReserveAttempts: getEnvInt("RESERVE_ATTEMPTS", 3),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
