package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr          string
	DBPath        string
	WriteTimeout  int // seconds
	MetricsAddr   string
	ControlSocket string
	Env           string
}

func Load() *Config {
	cfg := &Config{
		Addr:          ":8888",
		DBPath:        "msgd.db",
		WriteTimeout:  30,
		MetricsAddr:   ":9090",
		ControlSocket: "/tmp/msgd.sock",
		Env:           "prod",
	}

	if addr := os.Getenv("MSGD_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	if dbPath := os.Getenv("MSGD_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if timeoutStr := os.Getenv("MSGD_WRITE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	// Setting these to an empty string disables the endpoint.
	if addr, ok := os.LookupEnv("MSGD_METRICS_ADDR"); ok {
		cfg.MetricsAddr = addr
	}

	if path, ok := os.LookupEnv("MSGD_CONTROL_SOCKET"); ok {
		cfg.ControlSocket = path
	}

	if env := os.Getenv("MSGD_ENV"); env != "" {
		cfg.Env = env
	}

	return cfg
}
