package config

import "time"

type SecurityConfig interface {
	GetSessionTimeout() time.Duration
	GetRefreshThreshold() time.Duration
	GetMaxLoginAttempts() int
	GetLockoutWindow() time.Duration
	GetCSRFTokenMaxAge() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSessionTimeout() time.Duration {
	return 30 * time.Minute // Sessions expire after 30 minutes of inactivity
}

func (Security) GetRefreshThreshold() time.Duration {
	return 5 * time.Minute // Refresh access tokens this close to expiry
}

func (Security) GetMaxLoginAttempts() int {
	return 5
}

func (Security) GetLockoutWindow() time.Duration {
	return 15 * time.Minute
}

func (Security) GetCSRFTokenMaxAge() time.Duration {
	return 30 * time.Minute
}
