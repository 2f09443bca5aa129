package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/scythe504/coral-backend/internal/game"
)

type Config struct {
	Port        int
	AppEnv      string
	PublicURL   string
	DatabaseURL string

	Game game.Config

	RoomIdleGrace   time.Duration
	JanitorSchedule string
}

// IsLocal reports whether the process runs on a developer machine.
func (c Config) IsLocal() bool {
	return c.AppEnv == "local"
}

// Load reads .env if present, then the environment. Unset keys take their defaults.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var (
		cfg  Config
		errs []error
	)
	defaults := game.DefaultConfig()

	cfg.Port = getInt("PORT", 8080, &errs)
	cfg.AppEnv = getEnv("APP_ENV", "production")
	cfg.PublicURL = getEnv("PUBLIC_URL", "http://localhost:8080")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")

	cfg.Game = game.Config{
		RoundDelay:          getDuration("ROUND_DELAY", defaults.RoundDelay, &errs),
		SafeVisitDelay:      getDuration("SAFE_VISIT_DELAY", defaults.SafeVisitDelay, &errs),
		AccusationTimeout:   getDuration("ACCUSATION_TIMEOUT", defaults.AccusationTimeout, &errs),
		ProposalVoteTimeout: getDuration("PROPOSAL_VOTE_TIMEOUT", defaults.ProposalVoteTimeout, &errs),
	}

	cfg.RoomIdleGrace = getDuration("ROOM_IDLE_GRACE", 10*time.Minute, &errs)
	cfg.JanitorSchedule = getEnv("JANITOR_SCHEDULE", "@every 1m")

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// getEnv reads an environment variable and returns its value or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	if v < 0 {
		*errs = append(*errs, fmt.Errorf("%s: must not be negative", key))
		return defaultValue
	}
	return v
}
