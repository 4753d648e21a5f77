package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Target-site account. Never defaulted.
	Email    string
	Password string

	HomeURL          string
	ListingsURL      string
	PostLoginPattern string

	Headless      bool
	ChromeBin     string
	ScreenshotDir string
	SelectorsFile string

	LoginTimeout      time.Duration
	NavigationTimeout time.Duration
	FieldTimeout      time.Duration
	SwitchTimeout     time.Duration
	ObservationPause  time.Duration
	RunTimeout        time.Duration
	// Settle is the pause after clicks that trigger client-side rendering.
	Settle time.Duration

	PhotoTimeout   time.Duration
	PhotoMinBytes  int
	PhotoMaxBytes  int
	PhotoBatchSize int
	PhotoMax       int
	PhotoDir       string
	// Waits after each batch is handed to the form and before the next one.
	PhotoBatchWait   time.Duration
	PhotoBetweenWait time.Duration
	// TempDir is where job files and downloaded photos are written; empty
	// means the OS default.
	TempDir string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int

	SourceBaseURL string
	CEPBaseURL    string
	HTTPAddr      string
	CSVOutputPath string

	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Key      string
	S3Secret   string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Email:    os.Getenv("ZAP_EMAIL"),
		Password: os.Getenv("ZAP_PASSWORD"),

		HomeURL:          getEnv("CANALPRO_HOME_URL", "https://canalpro.grupozap.com"),
		ListingsURL:      getEnv("CANALPRO_LISTINGS_URL", "https://canalpro.grupozap.com/ZAP_OLX/0/listings?pageSize=10"),
		PostLoginPattern: getEnv("CANALPRO_POST_LOGIN_PATTERN", "/ZAP_OLX/"),

		Headless:      getEnvBool("HEADLESS", false),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		ScreenshotDir: getEnv("SCREENSHOT_DIR", "./output/screenshots"),
		SelectorsFile: getEnv("SELECTORS_FILE", ""),

		LoginTimeout:      getEnvDuration("LOGIN_TIMEOUT", 15*time.Second),
		NavigationTimeout: getEnvDuration("NAVIGATION_TIMEOUT", 10*time.Second),
		FieldTimeout:      getEnvDuration("FIELD_TIMEOUT", 5*time.Second),
		SwitchTimeout:     getEnvDuration("SWITCH_TIMEOUT", 3*time.Second),
		ObservationPause:  getEnvDuration("OBSERVATION_PAUSE", 2*time.Minute),
		RunTimeout:        getEnvDuration("RUN_TIMEOUT", 360*time.Second),
		Settle:            getEnvDuration("SETTLE", time.Second),

		PhotoTimeout:   getEnvDuration("PHOTO_TIMEOUT", 30*time.Second),
		PhotoMinBytes:  getEnvInt("PHOTO_MIN_BYTES", 1000),
		PhotoMaxBytes:  getEnvInt("PHOTO_MAX_BYTES", 20<<20),
		PhotoBatchSize: getEnvInt("PHOTO_BATCH_SIZE", 8),
		PhotoMax:       getEnvInt("PHOTO_MAX", 0),
		PhotoDir:       getEnv("PHOTO_DIR", "./images"),

		PhotoBatchWait:   getEnvDuration("PHOTO_BATCH_WAIT", 5*time.Second),
		PhotoBetweenWait: getEnvDuration("PHOTO_BETWEEN_WAIT", 3*time.Second),
		TempDir:          getEnv("TEMP_DIR", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "publisher"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "publisher123"),
		PostgresDB:       getEnv("POSTGRES_DB", "imoveis"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 500),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		SourceBaseURL: getEnv("SOURCE_BASE_URL", "https://gintervale.com.br/imoveis"),
		CEPBaseURL:    getEnv("CEP_BASE_URL", "https://viacep.com.br/ws"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/imoveis.csv"),

		S3Bucket:   getEnv("S3_BUCKET", ""),
		S3Region:   getEnv("S3_REGION", "us-east-1"),
		S3Endpoint: getEnv("S3_ENDPOINT", ""),
		S3Key:      getEnv("S3_ACCESS_KEY_ID", ""),
		S3Secret:   getEnv("S3_SECRET_ACCESS_KEY", ""),
	}
}

// HasCredentials reports whether both target-site credentials are set.
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.Email) != "" && strings.TrimSpace(c.Password) != ""
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// budgetSteps is how many form steps FillBudget assumes may each wait out
// FieldTimeout.
const budgetSteps = 25

// FillBudget is the worst case for everything before the observation pause:
// login, navigation and every step missing its control.
func (c *Config) FillBudget() time.Duration {
	return c.LoginTimeout + c.NavigationTimeout + budgetSteps*c.FieldTimeout
}

// CheckRunBudget rejects a RunTimeout that would expire before the form is
// filled and the observation pause has elapsed. Zero disables the timeout.
func (c *Config) CheckRunBudget() error {
	if c.RunTimeout <= 0 {
		return nil
	}
	need := c.ObservationPause + c.FillBudget()
	if c.RunTimeout <= need {
		return fmt.Errorf("RUN_TIMEOUT %s must exceed OBSERVATION_PAUSE %s plus the fill budget %s",
			c.RunTimeout, c.ObservationPause, c.FillBudget())
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "4m") or a bare number
// of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
