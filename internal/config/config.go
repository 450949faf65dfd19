package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config junta la configuración del server y del cliente. Sin
// DATABASE_URL el server corre con el repo in-memory (modo dev).
type Config struct {
	Port string `mapstructure:"PORT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Lado cliente (recetactl).
	APIBaseURL     string `mapstructure:"API_BASE_URL"`
	LocalStorePath string `mapstructure:"LOCAL_STORE_PATH"`
}

// Load lee .env (si existe) y el entorno.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("LOCAL_STORE_PATH", "recetas-local.json")

	for _, key := range []string{
		"PORT", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"LOG_LEVEL", "LOG_FORMAT", "API_BASE_URL", "LOCAL_STORE_PATH",
	} {
		_ = v.BindEnv(key)
	}

	// .env es opcional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
