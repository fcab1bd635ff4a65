package config

import "time"

type DevServerConfig interface {
	GetTokenSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type DevServer struct{}

var _ DevServerConfig = DevServer{}

func (DevServer) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "micromanager-dev-secret")
}

func (DevServer) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (DevServer) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
}
