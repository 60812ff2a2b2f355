package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort   string
	AppEnv    string
	LogLevel  string
	LogFormat string // "text" | "json"

	StoreDriver    string // "dynamo" | "memory"
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string // draw archive; empty disables it

	JWTPrivateKeyPath      string
	JWTPublicKeyPath       string
	JWTExpiry              time.Duration
	RefreshTokenExpiryDays int

	OTP      OTPConfig
	Delivery DeliveryConfig
	Draw     DrawConfig

	PurgeSchedule  string
	AllowedOrigins []string // CORS allowed origins
	MetricsEnabled bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	VerificationCodes string
	Sessions          string
	Events            string
	Participants      string
}

// OTPConfig tunes the one-time-code engine.
type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
	Cooldown    time.Duration
	HashCost    int
}

// DeliveryConfig selects and configures the out-of-band transports.
type DeliveryConfig struct {
	Timeout       time.Duration
	EmailProvider string // "smtp" | "sendgrid" | "log"
	PhoneProvider string // "twilio" | "sns" | "log"

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SendGridSandbox   bool

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string
	CountryCode        string

	SNSRegion string
}

// DrawConfig tunes the draw engine and result visibility.
type DrawConfig struct {
	MaxAttempts              int
	NotifyParticipants       bool
	ResultsVisibleBeforeDate bool
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:   getEnv("APP_PORT", "3000"),
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		StoreDriver:    getEnv("STORE_DRIVER", "dynamo"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
			Sessions:          getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Events:            getEnv("DYNAMO_TABLE_EVENTS", "events"),
			Participants:      getEnv("DYNAMO_TABLE_PARTICIPANTS", "participants"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", ""),

		JWTPrivateKeyPath:      getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:       getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:              getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		RefreshTokenExpiryDays: getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30),

		OTP: OTPConfig{
			TTL:         getEnvDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 5),
			Cooldown:    getEnvDuration("OTP_COOLDOWN", 30*time.Second),
			HashCost:    getEnvInt("OTP_HASH_COST", 10),
		},
		Delivery: DeliveryConfig{
			Timeout:       getEnvDuration("DELIVERY_TIMEOUT", 10*time.Second),
			EmailProvider: getEnv("EMAIL_PROVIDER", "smtp"),
			PhoneProvider: getEnv("WHATSAPP_PROVIDER", "twilio"),

			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnv("SMTP_PORT", "1025"),
			SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),

			SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
			SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "noreply@example.com"),
			SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Amigo Secreto"),
			SendGridSandbox:   getEnvBool("SENDGRID_SANDBOX", false),

			TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
			CountryCode:        getEnv("WHATSAPP_COUNTRY_CODE", "55"),

			SNSRegion: getEnv("SNS_REGION", "us-east-1"),
		},
		Draw: DrawConfig{
			MaxAttempts:              getEnvInt("DRAW_MAX_ATTEMPTS", 100),
			NotifyParticipants:       getEnvBool("DRAW_NOTIFY_PARTICIPANTS", false),
			ResultsVisibleBeforeDate: getEnvBool("RESULTS_VISIBLE_BEFORE_DATE", false),
		},

		PurgeSchedule:  getEnv("PURGE_SCHEDULE", "@every 15m"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("10m", "30s").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
