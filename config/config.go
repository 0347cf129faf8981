package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// RedisAddr enables the offer fingerprint cache when non-empty.
	RedisAddr string

	// Acquisition.
	Origins          []string
	Destinations     []string
	EnabledSources   []string
	FailureThreshold float64
	UnitTimeoutSec   int
	MaxConcurrency   int
	MaxRetries       int
	SourcePerMinute  int // rate limit handed to each adapter

	// Reconciliation. The bucket width is an empirically chosen constant
	// from the source feeds, exposed rather than hard-coded.
	DedupWindowHours int

	// Cost model.
	Travelers     int
	Bags          int
	BagFee        float64
	FuelRatePerKm float64
	HourlyValue   float64

	// Assembly.
	BudgetCeiling      float64
	MinNights          int
	MaxNights          int
	FoodPerNight       float64
	ActivitiesPerNight float64
	FilterHolidays     bool

	KiwiAPIKey string

	AirportsPath  string
	HolidaysPath  string
	CSVOutputPath string
	ChromeBin     string
	Verbose       bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "tripscout"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "tripscout123"),
		PostgresDB:       getEnv("POSTGRES_DB", "tripscout_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		Origins:          upperAll(getEnvList("ORIGINS", "MUC,FMM,NUE")),
		Destinations:     upperAll(getEnvList("DESTINATIONS", "LIS,BCN,PRG")),
		EnabledSources:   lowerAll(getEnvList("SOURCES", "kiwi,wizzair,skyscanner")),
		FailureThreshold: getEnvFloat("FAILURE_THRESHOLD", 0.5),
		UnitTimeoutSec:   getEnvInt("UNIT_TIMEOUT_SEC", 30),
		MaxConcurrency:   getEnvInt("MAX_CONCURRENCY", 8),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		SourcePerMinute:  getEnvInt("SOURCE_PER_MINUTE", 30),

		DedupWindowHours: getEnvInt("DEDUP_WINDOW_HOURS", 2),

		Travelers:     getEnvInt("TRAVELERS", 4),
		Bags:          getEnvInt("BAGS", 2),
		BagFee:        getEnvFloat("BAG_FEE", 30.0),
		FuelRatePerKm: getEnvFloat("FUEL_RATE_PER_KM", 0.08),
		HourlyValue:   getEnvFloat("HOURLY_VALUE", 20.0),

		BudgetCeiling:      getEnvFloat("BUDGET_CEILING", 2000.0),
		MinNights:          getEnvInt("MIN_NIGHTS", 3),
		MaxNights:          getEnvInt("MAX_NIGHTS", 10),
		FoodPerNight:       getEnvFloat("FOOD_PER_NIGHT", 100.0),
		ActivitiesPerNight: getEnvFloat("ACTIVITIES_PER_NIGHT", 50.0),
		FilterHolidays:     getEnvBool("FILTER_HOLIDAYS", true),

		KiwiAPIKey: getEnv("KIWI_API_KEY", ""),

		AirportsPath:  getEnv("AIRPORTS_PATH", "./data/airports.yaml"),
		HolidaysPath:  getEnv("HOLIDAYS_PATH", "./data/holidays.yaml"),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/raw_offers.csv"),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		Verbose:       getEnvBool("VERBOSE", false),
	}
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

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
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

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func upperAll(in []string) []string {
	for i, s := range in {
		in[i] = strings.ToUpper(s)
	}
	return in
}

func lowerAll(in []string) []string {
	for i, s := range in {
		in[i] = strings.ToLower(s)
	}
	return in
}
