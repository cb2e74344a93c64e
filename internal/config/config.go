package config

import (
	"os"
	"time"
)

type Config struct {
	ServerAddress   string
	MongoURI        string
	MongoDatabase   string
	JWTSecret       string
	JWTExpiration   time.Duration
	UploadDir       string
	MaxUploadSizeMB int64
	LedgerPath      string
	FrontendOrigin  string
}

func Load() *Config {
	return &Config{
		ServerAddress:   getEnv("SERVER_ADDRESS", ":8080"),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGODB_DB", "homestack"),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiration:   24 * time.Hour,
		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadSizeMB: 10,
		LedgerPath:      getEnv("LEDGER_PATH", "./data/items.csv"),
		FrontendOrigin:  getEnv("FRONTEND_ORIGIN", "http://localhost:5174"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
