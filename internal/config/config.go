package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time is used for durations parsed from the environment
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations are parsed with time.ParseDuration so
// values like "10m" or "30s" work as expected.
type Config struct {
    Env            string        // application environment (e.g. "dev", "prod")
    Port           string        // HTTP port to listen on
    DBUser         string        // database username
    DBPass         string        // database password (optional)
    DBHost         string        // database host address
    DBPort         string        // database port number
    DBName         string        // database name
    JWTSecret      string        // secret used to verify JWTs issued by the auth service
    HoldTTL        time.Duration // how long a seat hold survives before the reaper may reclaim it
    ReaperInterval time.Duration // how often the expiry reaper sweeps for lapsed holds
    IdemRetention  time.Duration // retention window for completed idempotency records
    AMQPURL        string        // RabbitMQ connection URL (optional; events degrade to no-op when empty)
    TelegramToken  string        // Telegram bot token (optional; empty disables notifications)
    TelegramChatID int64         // Telegram chat to announce bookings in
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Saga timing knobs
// have defaults so a bare environment still produces a working service.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),                               // environment (dev/test/prod)
        Port:           must("APP_PORT"),                              // port to bind the HTTP server
        DBUser:         must("DB_USER"),                               // database user
        DBPass:         os.Getenv("DB_PASS"),                          // database password (empty allowed)
        DBHost:         must("DB_HOST"),                               // database host
        DBPort:         must("DB_PORT"),                               // database port
        DBName:         must("DB_NAME"),                               // database name
        JWTSecret:      must("JWT_SECRET"),                            // secret used for verifying JWTs
        HoldTTL:        envDur("BOOKING_HOLD_TTL", 10*time.Minute),    // seat hold duration
        ReaperInterval: envDur("REAPER_INTERVAL", 30*time.Second),     // reaper sweep cadence
        IdemRetention:  envDur("IDEMPOTENCY_RETENTION", 24*time.Hour), // idempotency record TTL
        AMQPURL:        os.Getenv("RABBITMQ_URL"),                     // broker URL (empty disables publishing)
        TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),               // bot token (empty disables notifications)
        TelegramChatID: envInt64("TELEGRAM_CHAT_ID", 0),               // chat id for booking announcements
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

// envDur reads an optional duration variable, falling back to the provided
// default when the variable is unset or malformed.
func envDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := time.ParseDuration(v)
    if err != nil || d <= 0 {
        return def
    }
    return d
}

// Helper functions shared with ratelimit.go.
func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch v {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt64(k string, d int64) int64 {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.ParseInt(v, 10, 64); err == nil {
        return n
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}
