package config

import "time"

type HTTPConfig interface {
	GetRequestTimeout() time.Duration
	GetLoginTimeout() time.Duration
}

type HTTP struct{}

var _ HTTPConfig = HTTP{}

func (HTTP) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
}

// GetLoginTimeout bounds a silent re-login independently of the caller's context.
func (HTTP) GetLoginTimeout() time.Duration {
	return GetEnvDuration("LOGIN_TIMEOUT", 10*time.Second)
}
