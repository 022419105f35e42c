package config // package config loads application configuration from environment variables

import (
	"log"      // log is used to report configuration errors and halt execution
	"os"       // os provides access to environment variables
	"strconv"  // strconv converts strings to other types
	"time"     // time is used for duration typed settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// timeouts.  The reservation timeout is deliberately a single value: it
// drives both the Redis seat-lock TTL and a booking's expires_at deadline,
// so the two can never drift apart.
type Config struct {
	Env                string        // application environment (e.g. "dev", "prod")
	Port               string        // HTTP port to listen on
	DBUser             string        // database username
	DBPass             string        // database password (optional)
	DBHost             string        // database host address
	DBPort             string        // database port number
	DBName             string        // database name
	JWTSecret          string        // secret used to verify JWTs
	ReservationTimeout time.Duration // seat-lock TTL and PENDING booking window
	ReaperInterval     time.Duration // how often the expiry reaper sweeps
	AvailabilityTTL    time.Duration // cache TTL for the computed available-seat set
	LayoutTTL          time.Duration // cache TTL for static seat layouts
	GatewayKeyID       string        // payment gateway key id
	GatewayKeySecret   string        // payment gateway key secret
	GatewayWebhookKey  string        // payment gateway webhook signing secret
	GatewayMock        bool          // run the gateway in deterministic mock mode
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Timeouts have
// defaults matching the production deployment: a ten minute payment
// window, five second reaper sweeps and a thirty second availability cache.
func Load() Config {
	return Config{
		Env:                must("APP_ENV"),      // environment (dev/test/prod)
		Port:               must("APP_PORT"),     // port to bind the HTTP server
		DBUser:             must("DB_USER"),      // database user
		DBPass:             os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:             must("DB_HOST"),      // database host
		DBPort:             must("DB_PORT"),      // database port
		DBName:             must("DB_NAME"),      // database name
		JWTSecret:          must("JWT_SECRET"),   // secret used for verifying JWTs
		ReservationTimeout: seconds("RESERVATION_TIMEOUT_SEC", 600),   // payment window / lock TTL
		ReaperInterval:     seconds("REAPER_INTERVAL_SEC", 5),         // reaper sweep interval
		AvailabilityTTL:    seconds("AVAILABILITY_CACHE_TTL_SEC", 30), // available-seat cache TTL
		LayoutTTL:          seconds("LAYOUT_CACHE_TTL_SEC", 3600),     // static layout cache TTL
		GatewayKeyID:       os.Getenv("GATEWAY_KEY_ID"),              // gateway key id
		GatewayKeySecret:   os.Getenv("GATEWAY_KEY_SECRET"),          // gateway secret
		GatewayWebhookKey:  os.Getenv("GATEWAY_WEBHOOK_SECRET"),      // webhook signing secret
		GatewayMock:        getenv("GATEWAY_MODE", "mock") == "mock", // explicit mode switch
	}
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

// seconds reads an integer environment variable and converts it to a
// time.Duration in seconds, falling back to def when unset.  Invalid
// values cause a fatal error so that misconfiguration is caught at startup.
func seconds(key string, def int) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return time.Duration(def) * time.Second
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return time.Duration(n) * time.Second
}

// getenv returns the value of an environment variable or a default when
// the variable is unset or empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
