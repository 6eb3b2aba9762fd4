package config

type Config interface {
	EnvConfig
	APIConfig
	SecurityConfig
}

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	API
	Security
}

func New() Config {
	return mainConfig{}
}
