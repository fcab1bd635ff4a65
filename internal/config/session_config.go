package config

import "path/filepath"

const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type SessionConfig interface {
	GetSessionStore() string
	GetSessionFile() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetSingleFlightRelogin() bool
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionStore is one of StoreFile, StoreRedis or StoreMemory.
func (Session) GetSessionStore() string {
	switch s := GetEnv("SESSION_STORE", StoreFile); s {
	case StoreFile, StoreRedis, StoreMemory:
		return s
	default:
		return StoreFile
	}
}

func (Session) GetSessionFile() string {
	return GetEnv("SESSION_FILE", filepath.Join(EnvVars{}.GetDataFolder(), "session.json"))
}

func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Session) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

func (Session) GetSingleFlightRelogin() bool {
	return GetEnvBool("SINGLE_FLIGHT_RELOGIN", true)
}
