package config

import "time"

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPIPathPrefix() string
	GetCSRFHeaderName() string
	GetRequestTimeout() time.Duration
}

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend base URL including the API path prefix,
// e.g. "https://api.cajasdelcampo.com/api"
func (API) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:4000/api")
}

func (API) GetAPIPathPrefix() string {
	return GetEnv("API_PATH_PREFIX", "/api")
}

func (API) GetCSRFHeaderName() string {
	return GetEnv("CSRF_HEADER_NAME", "X-CSRF-Token")
}

func (API) GetRequestTimeout() time.Duration {
	return 15 * time.Second
}
