package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string `json:"port"`
	SeedDir     string `json:"seedDir"`
	DBURL       string `json:"dbUrl"`
	AutoMigrate bool   `json:"autoMigrate"`
	JWTSecret   string `json:"jwtSecret"`
}

func def() Config {
	return Config{
		Port:        "8080",
		SeedDir:     "seed",
		DBURL:       "",
		AutoMigrate: false,
		JWTSecret:   "dev-secret-change-me",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("NEMI_PORT", cfg.Port)
	cfg.SeedDir = getenv("NEMI_SEED_DIR", cfg.SeedDir)
	cfg.DBURL = getenv("NEMI_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("NEMI_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.JWTSecret = getenv("NEMI_JWT_SECRET", cfg.JWTSecret)

	// Flags overrides
	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	seed := flag.String("seed", cfg.SeedDir, "Path to seed catalog directory")
	db := flag.String("db", cfg.DBURL, "Postgres URL (empty = in-memory)")
	auto := flag.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Apply meta-schema DDL on start (true/false)")
	secret := flag.String("jwt-secret", cfg.JWTSecret, "HMAC secret for tokens")

	flag.Parse()

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.SeedDir = strings.TrimSpace(*seed)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.AutoMigrate = strings.EqualFold(strings.TrimSpace(*auto), "true") ||
		strings.EqualFold(strings.TrimSpace(*auto), "1") ||
		strings.EqualFold(strings.TrimSpace(*auto), "yes")
	cfg.JWTSecret = strings.TrimSpace(*secret)

	return cfg
}
