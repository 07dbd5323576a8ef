package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"leadpilot/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// DefaultSender is the fallback delivery channel used when a sequence has no
// sender accounts configured. It has no daily cap.
type DefaultSender struct {
	FromEmail    string `json:"from_email"`
	FromName     string `json:"from_name"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	// Public base URL that tracking links and the open pixel point at
	TrackingBaseURL string `json:"tracking_base_url"`

	// Outbound pacing and quotas
	SendDelay          time.Duration `json:"send_delay"`
	DefaultDailyCap    int           `json:"default_daily_cap"`
	MailTimeout        time.Duration `json:"mail_timeout"`
	RateLimitTracking  int           `json:"rate_limit_tracking"`

	// Lead source polling
	ApifyToken        string        `json:"-"`
	ApifyBaseURL      string        `json:"apify_base_url"`
	ScrapePollEvery   time.Duration `json:"scrape_poll_every"`
	ScrapeMaxAttempts int           `json:"scrape_max_attempts"`

	SentryDSN string      `json:"-"`
	Redis     RedisConfig `json:"redis"`
	Sender    DefaultSender
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "leadpilot"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		TrackingBaseURL: getEnv("TRACKING_BASE_URL", "http://localhost:5000"),

		SendDelay:         time.Duration(getEnvAsInt("SEND_DELAY_MS", 2000)) * time.Millisecond,
		DefaultDailyCap:   getEnvAsInt("DEFAULT_DAILY_CAP", 50),
		MailTimeout:       time.Duration(getEnvAsInt("MAIL_TIMEOUT_SEC", 30)) * time.Second,
		RateLimitTracking: getEnvAsInt("RATE_LIMIT_TRACKING", 300),

		ApifyToken:        getEnv("APIFY_TOKEN", ""),
		ApifyBaseURL:      getEnv("APIFY_BASE_URL", "https://api.apify.com/v2"),
		ScrapePollEvery:   time.Duration(getEnvAsInt("SCRAPE_POLL_SEC", 10)) * time.Second,
		ScrapeMaxAttempts: getEnvAsInt("SCRAPE_MAX_ATTEMPTS", 60),

		SentryDSN: getEnv("SENTRY_DSN", ""),
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Sender: DefaultSender{
			FromEmail:    getEnv("SMTP_FROM_EMAIL", ""),
			FromName:     getEnv("SMTP_FROM_NAME", "LeadPilot"),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		},
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.Environment == "production" {
		if AppConfig.Sender.SMTPHost == "" || AppConfig.Sender.FromEmail == "" {
			return fmt.Errorf("SMTP_HOST and SMTP_FROM_EMAIL are required in production")
		}
		if !strings.HasPrefix(AppConfig.TrackingBaseURL, "https://") {
			return fmt.Errorf("TRACKING_BASE_URL must be https in production")
		}
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Successfully connected to the database")
	log.Println("Starting database migration...")
	if err := migrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Tracking base URL: %s", AppConfig.TrackingBaseURL)
	log.Printf("Send delay: %v, default daily cap: %d",
		AppConfig.SendDelay, AppConfig.DefaultDailyCap)
}

func migrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Prospect{},
		&models.Sequence{},
		&models.TrackingRecord{},
		&models.ClickEvent{},
		&models.SendFailure{},
		&models.ScrapeJob{},
	)
}
