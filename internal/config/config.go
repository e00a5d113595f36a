package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core runtime configuration.  Each field corresponds to
// an environment variable.  Concern-specific settings (booking, payment,
// events, cache, rate limiting) live in their own loaders.
type Config struct {
	Env            string         // application environment (dev, test, prod)
	Port           string         // HTTP port to listen on
	LogLevel       string         // logrus level name
	StorageDriver  string         // "mysql" or "memory"
	DBUser         string         // database username
	DBPass         string         // database password (optional)
	DBHost         string         // database host address
	DBPort         string         // database port number
	DBName         string         // database name
	JWTSecret      string         // secret used to sign access tokens
	AccessTTLMin   int            // access token time-to-live in minutes
	RefreshTTLDays int            // refresh token time-to-live in days
	BcryptCost     int            // bcrypt cost for password hashing
	FrontendURL    string         // public website base URL used in payment redirects
	IMSURL         string         // front-desk dashboard origin (CORS)
	Location       *time.Location // hotel local time zone for check-in dates
}

// Load reads a .env file when present, then builds a Config from the
// environment.  Missing required variables terminate the process.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		StorageDriver:  getenv("STORAGE_DRIVER", "mysql"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		FrontendURL:    must("FRONTEND_URL"),
		IMSURL:         os.Getenv("IMS_URL"),
		Location:       loadLocation(getenv("HOTEL_TIMEZONE", "Asia/Manila")),
	}
	if cfg.StorageDriver == "mysql" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("unknown HOTEL_TIMEZONE %q, falling back to UTC", name)
		return time.UTC
	}
	return loc
}
