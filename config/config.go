package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"debtflow/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type SMTPConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

type SMSAPIConfig struct {
	Token       string `json:"-"`
	BaseURL     string `json:"base_url"`
	SenderName  string `json:"sender_name"`
	CallbackURL string `json:"callback_url"`
	TestMode    bool   `json:"test_mode"`
}

type Config struct {
	Environment    string `json:"environment"`
	LogLevel       string `json:"log_level"`
	SentryDSN      string `json:"-"`
	EncryptionKey  string `json:"-"`
	ServerPort     string `json:"server_port"`
	AllowedOrigins string `json:"allowed_origins"`
	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	Redis  RedisConfig  `json:"redis"`
	SMTP   SMTPConfig   `json:"smtp"`
	SMSAPI SMSAPIConfig `json:"smsapi"`

	// Collection engine
	InterestYearlyRate decimal.Decimal `json:"interest_yearly_rate"`
	CronSecret         string          `json:"-"`
	WorkerEnabled      bool            `json:"worker_enabled"`
	DispatchInterval   time.Duration   `json:"dispatch_interval"`
	DispatchBatchSize  int             `json:"dispatch_batch_size"`
	PaymentLinkBaseURL string          `json:"payment_link_base_url"`
	RateLimitWebhook   int             `json:"rate_limit_webhook"`
	RateLimitAPI       int             `json:"rate_limit_api"`
}

// DefaultInterestYearlyRate is the statutory late-payment rate for commercial transactions
var DefaultInterestYearlyRate = decimal.RequireFromString("0.155")

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "debtflow"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnvAsInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("SMTP_FROM_EMAIL", ""),
			FromName:  getEnv("SMTP_FROM_NAME", ""),
		},
		SMSAPI: SMSAPIConfig{
			Token:       getEnv("SMSAPI_TOKEN", ""),
			BaseURL:     getEnv("SMSAPI_BASE_URL", "https://api.smsapi.pl"),
			SenderName:  getEnv("SMSAPI_SENDER_NAME", ""),
			CallbackURL: getEnv("SMSAPI_CALLBACK_URL", ""),
			TestMode:    getEnvAsBool("SMSAPI_TEST_MODE", false),
		},

		InterestYearlyRate: getEnvAsDecimal("INTEREST_YEARLY_RATE", DefaultInterestYearlyRate),
		CronSecret:         getEnv("CRON_SECRET", ""),
		WorkerEnabled:      getEnvAsBool("DISPATCH_WORKER_ENABLED", false),
		DispatchInterval:   time.Duration(getEnvAsInt("DISPATCH_INTERVAL_SECONDS", 60)) * time.Second,
		DispatchBatchSize:  getEnvAsInt("DISPATCH_BATCH_SIZE", 200),
		PaymentLinkBaseURL: getEnv("PAYMENT_LINK_BASE_URL", ""),
		RateLimitWebhook:   getEnvAsInt("RATE_LIMIT_WEBHOOK", 600),
		RateLimitAPI:       getEnvAsInt("RATE_LIMIT_API", 120),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if AppConfig.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required to protect the dispatch trigger")
	}
	if !AppConfig.InterestYearlyRate.IsPositive() {
		return fmt.Errorf("INTEREST_YEARLY_RATE must be positive")
	}
	if AppConfig.Environment == "production" {
		if AppConfig.SMTP.Host == "" && AppConfig.SMSAPI.Token == "" {
			return fmt.Errorf("at least one delivery channel (SMTP or SMSAPI) is required in production")
		}
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log := logrus.WithField("component", "db")
	log.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.WithField("dsn", maskPassword(dsn)).Debug("Using connection string")

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

	log.Info("Successfully connected to the database")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Info("Database migration completed")
	return nil
}

// MigrateDB creates or updates every collection table
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(models.AllModels()...)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := decimal.NewFromString(strings.TrimSpace(valueStr))
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
	logrus.WithFields(logrus.Fields{
		"environment":     AppConfig.Environment,
		"server_port":     AppConfig.ServerPort,
		"database":        fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"redis":           AppConfig.Redis.Enabled,
		"smtp":            AppConfig.SMTP.Host != "",
		"smsapi":          AppConfig.SMSAPI.Token != "",
		"interest_rate":   AppConfig.InterestYearlyRate.String(),
		"dispatch_worker": AppConfig.WorkerEnabled,
		"dispatch_every":  AppConfig.DispatchInterval.String(),
	}).Info("Loaded configuration")
}
