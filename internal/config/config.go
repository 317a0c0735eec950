package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	AllowedOrigins []string
	MaxPlayers     int
	DefaultRounds  int
	AnswerTime     int // seconds
	VoteTime       int // seconds
}

// FromEnv loads a .env file if present, then reads the environment.
func FromEnv() Config {
	_ = godotenv.Load()

	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.AllowedOrigins = splitCSV(getenv("ALLOWED_ORIGINS", "*"))
	c.MaxPlayers = getint("MAX_PLAYERS_PER_ROOM", 8)
	c.DefaultRounds = getint("DEFAULT_ROUNDS", 5)
	c.AnswerTime = getint("ANSWER_TIME_LIMIT", 60)
	c.VoteTime = getint("VOTE_TIME_LIMIT", 45)
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
