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

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	PaymentCurrency       string
	// Include expected signatures in signature_mismatch responses.
	PaymentSignatureDebug bool
	// Never let a failed verification overwrite a paid registration.
	PaymentGuardPaid bool

	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	EmailFrom string

	// Kafka (comma-separated brokers, empty disables publishing)
	KafkaBrokers       string
	KafkaPaymentsTopic string
	KafkaDLQTopic      string
	KafkaConsumerGroup string

	SessionSecret string
	SessionTTL    time.Duration
	AdminUsername string
	AdminPassword string

	CORSAllowOrigin string
	RateLimitRPS    float64
	RateLimitBurst  int
	// Comma-separated CIDRs or IPs whose X-Forwarded-For is honoured.
	TrustedProxies  string

	LogLevel string
	LogFile  string
}

var AppConfig Config

func LoadConfig() {
	// Try loading .env from different locations
	envLocations := []string{
		".env",
		"config/.env",
		"../config/.env",
		"../../config/.env",
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() Config {
	return Config{
		Port: getEnvWithDefault("PORT", "8080"),

		DBHost:     getEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     getEnvWithDefault("DB_PORT", "5432"),
		DBUser:     getEnvWithDefault("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnvWithDefault("DB_NAME", "postgres"),
		DBSSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),

		RazorpayKeyID:         firstEnv("RAZORPAY_KEY_ID", "RazorpayKeyID"),
		RazorpayKeySecret:     firstEnv("RAZORPAY_KEY_SECRET", "RazorpayKeySecret"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		PaymentCurrency:       getEnvWithDefault("PAYMENT_CURRENCY", "INR"),
		PaymentSignatureDebug: getBool("PAYMENT_SIGNATURE_DEBUG", false),
		PaymentGuardPaid:      getBool("PAYMENT_GUARD_PAID", false),

		SMTPHost:  getEnvWithDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:  getInt("SMTP_PORT", 587),
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		EmailFrom: os.Getenv("EMAIL_FROM"),

		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		KafkaPaymentsTopic: getEnvWithDefault("KAFKA_PAYMENTS_TOPIC", "exam.payments"),
		KafkaDLQTopic:      getEnvWithDefault("KAFKA_DLQ_TOPIC", "exam.payments.dlq"),
		KafkaConsumerGroup: getEnvWithDefault("KAFKA_CONSUMER_GROUP", "exam-portal-notifier"),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    getDuration("SESSION_TTL", 8*time.Hour),
		AdminUsername: getEnvWithDefault("ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		CORSAllowOrigin: getEnvWithDefault("CORS_ALLOW_ORIGIN", "*"),
		RateLimitRPS:    getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:  getInt("RATE_LIMIT_BURST", 10),
		TrustedProxies:  os.Getenv("TRUSTED_PROXIES"),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.RazorpayKeyID == "" {
		missing = append(missing, "RAZORPAY_KEY_ID")
	}
	if c.RazorpayKeySecret == "" {
		missing = append(missing, "RAZORPAY_KEY_SECRET")
	}
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// String renders the config for startup logs with secrets masked.
func (c Config) String() string {
	return fmt.Sprintf(
		"port=%s db=%s@%s:%s/%s razorpay_key_id=%s razorpay_key_secret=%s webhook_secret=%s kafka=%q topic=%s smtp=%s:%d",
		c.Port, c.DBUser, c.DBHost, c.DBPort, c.DBName,
		c.RazorpayKeyID, mask(c.RazorpayKeySecret), mask(c.RazorpayWebhookSecret),
		c.KafkaBrokers, c.KafkaPaymentsTopic, c.SMTPHost, c.SMTPPort,
	)
}

// Brokers returns the trimmed, non-empty Kafka broker addresses.
func (c Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// TrustedProxyList returns the trimmed, non-empty TRUSTED_PROXIES entries.
func (c Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func mask(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "****"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func GetDBConnString() string {
	return "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSSLMode
}
