package config

import "path/filepath"

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			DBPath:   filepath.Join(DefaultConfigDir(), "assistanthub.db"),
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Exchange: ExchangeConfig{
			TimeoutSeconds: 20,
		},
	}
}
