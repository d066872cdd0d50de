package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	Env                string
	MongoURI           string
	MongoDB            string
	AuthSecret         string
	CorsAllowedOrigins []string

	// Identity provider backend API, used for role lookups and webhook
	// verification.
	IdPAPIURL     string
	IdPSecretKey  string
	WebhookSecret string

	// Image CDN keys for signed upload credentials.
	IKPublicKey   string
	IKPrivateKey  string
	IKURLEndpoint string
}

func (c Config) Production() bool {
	return c.Env == "production"
}

func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		MongoURI:           getEnv("MONGO_URI", ""),
		MongoDB:            getEnv("MONGO_DB", "inkwell"),
		AuthSecret:         getEnv("AUTH_SECRET", ""),
		CorsAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		IdPAPIURL:          getEnv("IDP_API_URL", ""),
		IdPSecretKey:       getEnv("IDP_SECRET_KEY", ""),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		IKPublicKey:        getEnv("IK_PUBLIC_KEY", ""),
		IKPrivateKey:       getEnv("IK_PRIVATE_KEY", ""),
		IKURLEndpoint:      getEnv("IK_URL_ENDPOINT", ""),
	}

	if cfg.MongoURI == "" {
		log.Fatal("MONGO_URI is required")
	}
	if cfg.AuthSecret == "" {
		log.Fatal("AUTH_SECRET is required")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
