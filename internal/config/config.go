package config

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetDatabaseURL() string
	GetTenantDBHost() string
	GetTenantAdminDSN() string
	GetTenantDSNFormat() string
	GetRedisAddr() string
	GetSystemsRegistryPath() string
	GetTemplatesDir() string
	GetSuperAdminEmail() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Security
}

func New() Config {
	return mainConfig{}
}
