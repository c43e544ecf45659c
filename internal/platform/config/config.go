// Package config loads server and lifecycle tunables from the environment.
// The parole qualification thresholds are heuristics, not load-bearing
// design; they are deliberately configuration rather than constants.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the lifecycle server.
type Config struct {
	Port        int
	Debug       bool
	DatabaseURL string // Postgres; empty selects SQLite
	SQLitePath  string
	RedisURL    string // empty disables the custody snapshot cache

	// Clock: how much in-game time passes per real tick.
	TickInterval   time.Duration
	MinutesPerTick float64

	Lifecycle LifecycleConfig
}

// LifecycleConfig collects the custody pipeline tunables.
type LifecycleConfig struct {
	CellCount int

	// Booking
	OfficerPresenceRadius  float64 // meters an officer may stand from a station
	ShortSentenceMinutes   float64 // below this, InventoryExchange is bypassed
	BookingStuckTimeoutMin float64

	// Release
	ReleaseStuckTimeoutMin float64

	// Bail
	BailMultiplier       float64
	BailNegotiationBound float64 // fraction of base, symmetric

	// Parole
	ParoleMinArrests         int
	ParoleRecentArrests      int
	ParoleRecentWindowDays   float64
	ParoleGraceMinutes       float64
	ParoleSearchCooldownMin  float64
	ParoleBaseDurationMin    float64
	ParoleViolationExtendMin float64
	ParoleRevokeViolations   int

	// Presence
	PresenceActivationRadius   float64
	PresenceDeactivationRadius float64
}

// Load reads configuration from the environment with production defaults.
func Load() *Config {
	return &Config{
		Port:        getEnvInt("PORT", 8080),
		Debug:       getEnvBool("DEBUG", false),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "jail.db"),
		RedisURL:    getEnv("REDIS_URL", ""),

		TickInterval:   getEnvDuration("TICK_INTERVAL", 5*time.Second),
		MinutesPerTick: getEnvFloat("MINUTES_PER_TICK", 1.0),

		Lifecycle: LifecycleConfig{
			CellCount: getEnvInt("CELL_COUNT", 8),

			OfficerPresenceRadius:  getEnvFloat("OFFICER_PRESENCE_RADIUS", 4.0),
			ShortSentenceMinutes:   getEnvFloat("SHORT_SENTENCE_MINUTES", 120),
			BookingStuckTimeoutMin: getEnvFloat("BOOKING_STUCK_TIMEOUT_MIN", 45),

			ReleaseStuckTimeoutMin: getEnvFloat("RELEASE_STUCK_TIMEOUT_MIN", 30),

			BailMultiplier:       getEnvFloat("BAIL_MULTIPLIER", 2.5),
			BailNegotiationBound: getEnvFloat("BAIL_NEGOTIATION_BOUND", 0.20),

			ParoleMinArrests:         getEnvInt("PAROLE_MIN_ARRESTS", 2),
			ParoleRecentArrests:      getEnvInt("PAROLE_RECENT_ARRESTS", 2),
			ParoleRecentWindowDays:   getEnvFloat("PAROLE_RECENT_WINDOW_DAYS", 30),
			ParoleGraceMinutes:       getEnvFloat("PAROLE_GRACE_MINUTES", 30),
			ParoleSearchCooldownMin:  getEnvFloat("PAROLE_SEARCH_COOLDOWN_MIN", 2),
			ParoleBaseDurationMin:    getEnvFloat("PAROLE_BASE_DURATION_MIN", 2880),
			ParoleViolationExtendMin: getEnvFloat("PAROLE_VIOLATION_EXTEND_MIN", 360),
			ParoleRevokeViolations:   getEnvInt("PAROLE_REVOKE_VIOLATIONS", 3),

			PresenceActivationRadius:   getEnvFloat("PRESENCE_ACTIVATION_RADIUS", 60),
			PresenceDeactivationRadius: getEnvFloat("PRESENCE_DEACTIVATION_RADIUS", 80),
		},
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
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
