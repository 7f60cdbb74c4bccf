package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Elastic  ElasticsearchConfig
	Sales    SalesConfig
}

type ServerConfig struct {
	AppEnv string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	// SalesTopic carries SaleRequested events; InventoryTopic carries
	// goods receipts and adjustments; CatalogTopic carries product
	// upserts from the back office.
	SalesTopic     string
	InventoryTopic string
	CatalogTopic   string
	GroupID        string
}

type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
}

type SalesConfig struct {
	// CurrencyPlaces is the number of decimal places persisted amounts are
	// rounded to (0 for whole-unit currencies).
	CurrencyPlaces int
	// AllowCreditSales gates receivable creation globally, on top of the
	// per-customer credit flag.
	AllowCreditSales bool
	// InvoiceDueDays is the payment term applied to shortfall invoices.
	InvoiceDueDays int
	// ExpirySweepMinutes is the interval for the expired-batch sweep.
	ExpirySweepMinutes int
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv: getEnv("APP_ENV", "dev"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5432"),
			User:            getEnv("POSTGRES_USER", "retailpos"),
			Password:        getEnv("POSTGRES_PASSWORD", "retailpos"),
			DBName:          getEnv("POSTGRES_DB", "retailpos_sales"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:        getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			SalesTopic:     getEnv("KAFKA_TOPIC_SALES", "sales.requests"),
			InventoryTopic: getEnv("KAFKA_TOPIC_INVENTORY", "inventory.requests"),
			CatalogTopic:   getEnv("KAFKA_TOPIC_CATALOG", "catalog.events"),
			GroupID:        getEnv("KAFKA_GROUP", "sales-service"),
		},
		Elastic: ElasticsearchConfig{
			Addresses: getEnvSlice("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Username:  getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  getEnv("ELASTICSEARCH_PASSWORD", ""),
		},
		Sales: SalesConfig{
			CurrencyPlaces:     getEnvInt("SALES_CURRENCY_PLACES", 0),
			AllowCreditSales:   getEnvBool("SALES_ALLOW_CREDIT", true),
			InvoiceDueDays:     getEnvInt("SALES_INVOICE_DUE_DAYS", 30),
			ExpirySweepMinutes: getEnvInt("SALES_EXPIRY_SWEEP_MINUTES", 60),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
