package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port string

	DBDriver   string // postgres, mysql or sqlite
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	JWTKey string

	UploadDir         string // extracted packages live here, one dir per upload
	StagingDir        string // uploaded archives wait here for the ingest workers
	PackagePublicPath string // URL prefix the extracted packages are served under
	RuntimeBasePath   string // URL prefix of the runtime endpoints, baked into the shim
	MaxUploadMB       int

	IngestAsync   bool
	IngestWorkers int
	IngestQueue   int

	ExpiryCron   string
	LaunchResume bool

	PackageCacheSize int
	PackageCacheTTL  time.Duration
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = FromEnv()

	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() *Config {
	return &Config{
		Port: getEnv("PORT", "3000"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "coursebridge"),
		DBPort:     getEnv("DB_PORT", "5432"),

		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		UploadDir:         getEnv("UPLOAD_DIR", "./public/packages"),
		StagingDir:        getEnv("STAGING_DIR", "./uploads/staging"),
		PackagePublicPath: getEnv("PACKAGE_PUBLIC_PATH", "/packages"),
		RuntimeBasePath:   getEnv("RUNTIME_BASE_PATH", "/runtime"),
		MaxUploadMB:       getEnvInt("MAX_UPLOAD_MB", 512),

		IngestAsync:   getEnvBool("INGEST_ASYNC", true),
		IngestWorkers: getEnvInt("INGEST_WORKERS", 2),
		IngestQueue:   getEnvInt("INGEST_QUEUE", 64),

		ExpiryCron:   getEnv("EXPIRY_CRON", "*/15 * * * *"),
		LaunchResume: getEnvBool("LAUNCH_RESUME", false),

		PackageCacheSize: getEnvInt("PACKAGE_CACHE_SIZE", 512),
		PackageCacheTTL:  getEnvDuration("PACKAGE_CACHE_TTL", 5*time.Minute),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to bool: %v", key, err)
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}
