package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	commoncfg "github.com/hosaammohammed1999-ai/radmeter1/common/config"
)

// Config radmeter service configuration
type Config struct {
	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig

	RedisEnabled bool
	Redis        commoncfg.RedisConfig

	MQTTEnabled bool
	MQTT        commoncfg.MQTTConfig
	MQTTTopic   string

	Cache struct {
		MaxReadings     int
		Retention       time.Duration
		SweepInterval   time.Duration
		WarmReadings    int
		DefaultSensorID string
		MirrorTTL       time.Duration
	}

	WriteBehind struct {
		Interval       time.Duration
		FailureBackoff time.Duration
	}

	Scheduler struct {
		Interval          time.Duration
		ForceInterval     time.Duration
		StopTimeout       time.Duration
		AutoCheckoutHours int
	}

	Alerts struct {
		DedupWindow  time.Duration
		Stream       string
		StreamMaxLen int64
	}

	Attendance struct {
		IdentityURL string
		Timeout     time.Duration
	}

	Timezone string

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.ShutdownTimeout = getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)

	cfg.DBEnabled = getEnvBool("DB_ENABLED", true)
	cfg.Database = commoncfg.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Database:        "radiation_monitoring",
		SSLMode:         "disable",
		MaxConns:        10,
		MaxIdle:         getEnvInt("DB_MAX_IDLE", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTTEnabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT = commoncfg.MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "radmeter", QoS: 1}
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTTTopic = getEnv("MQTT_TOPIC", "radmeter/+/data")

	cfg.Cache.MaxReadings = getEnvInt("CACHE_MAX_READINGS", 100)
	cfg.Cache.Retention = getEnvDuration("CACHE_RETENTION", time.Hour)
	cfg.Cache.SweepInterval = getEnvDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute)
	cfg.Cache.WarmReadings = getEnvInt("CACHE_WARM_READINGS", 10)
	cfg.Cache.DefaultSensorID = getEnv("DEFAULT_SENSOR_ID", "ESP32_001")
	cfg.Cache.MirrorTTL = getEnvDuration("REDIS_MIRROR_TTL", 10*time.Minute)

	cfg.WriteBehind.Interval = getEnvDuration("WRITE_BEHIND_INTERVAL", 30*time.Second)
	cfg.WriteBehind.FailureBackoff = getEnvDuration("WRITE_BEHIND_FAILURE_BACKOFF", 60*time.Second)

	cfg.Scheduler.Interval = getEnvDuration("SCHEDULER_INTERVAL", 5*time.Minute)
	cfg.Scheduler.ForceInterval = getEnvDuration("SCHEDULER_FORCE_INTERVAL", time.Hour)
	cfg.Scheduler.StopTimeout = getEnvDuration("SCHEDULER_STOP_TIMEOUT", 5*time.Second)
	cfg.Scheduler.AutoCheckoutHours = getEnvInt("SESSION_AUTO_CHECKOUT_HOURS", 12)

	cfg.Alerts.DedupWindow = getEnvDuration("ALERT_DEDUP_WINDOW", 5*time.Minute)
	cfg.Alerts.Stream = getEnv("ALERT_STREAM", "radiation:alerts")
	cfg.Alerts.StreamMaxLen = int64(getEnvInt("ALERT_STREAM_MAXLEN", 10000))

	cfg.Attendance.IdentityURL = getEnv("ATTENDANCE_IDENTITY_URL", "")
	cfg.Attendance.Timeout = getEnvDuration("ATTENDANCE_IDENTITY_TIMEOUT", 15*time.Second)

	cfg.Timezone = getEnv("TIMEZONE", "Asia/Baghdad")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the configured deployment time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) validate() error {
	if c.Cache.MaxReadings <= 0 {
		return fmt.Errorf("CACHE_MAX_READINGS must be positive, got %d", c.Cache.MaxReadings)
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("CACHE_SWEEP_INTERVAL must be positive")
	}
	if c.Scheduler.Interval <= 0 || c.Scheduler.ForceInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	if c.WriteBehind.Interval <= 0 || c.WriteBehind.FailureBackoff <= 0 {
		return fmt.Errorf("write-behind intervals must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return d
}
