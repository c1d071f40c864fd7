package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	baseURLVar    = "BASE_URL"
	databaseVar   = "DATABASE_URL"
	tenantHostVar = "TENANT_DB_HOST"
	redisAddrVar  = "REDIS_ADDR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Varzea Prime Hub")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the public base URL of the hub (e.g., "https://hub.varzeaprime.com.br").
// Used as the token issuer and when composing handoff URLs for sibling systems.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetDatabaseURL returns the connection string for the hub master database.
func (EnvVars) GetDatabaseURL() string {
	return GetEnv(databaseVar, "postgres://localhost:5432/varzea_hub?sslmode=disable")
}

// GetTenantDBHost returns the host where newly provisioned tenant databases are created.
func (EnvVars) GetTenantDBHost() string {
	return GetEnv(tenantHostVar, "localhost:5432")
}

// GetTenantAdminDSN returns the connection string used to create and drop
// tenant databases. It must point at a database on the tenant host with
// CREATE DATABASE rights.
func (EnvVars) GetTenantAdminDSN() string {
	return GetEnv("TENANT_DB_ADMIN_DSN",
		fmt.Sprintf("postgres://postgres@%s/postgres?sslmode=disable", GetEnv(tenantHostVar, "localhost:5432")))
}

// GetTenantDSNFormat returns a format string with one %s placeholder for the
// tenant database name.
func (EnvVars) GetTenantDSNFormat() string {
	return GetEnv("TENANT_DB_DSN_FORMAT",
		fmt.Sprintf("postgres://postgres@%s/%%s?sslmode=disable", GetEnv(tenantHostVar, "localhost:5432")))
}

// GetRedisAddr returns the redis address for the shared session store.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "localhost:6379")
}

func (EnvVars) GetSystemsRegistryPath() string {
	return GetEnv("SYSTEMS_REGISTRY", "./systems.toml")
}

func (EnvVars) GetTemplatesDir() string {
	return GetEnv("TENANT_TEMPLATES_DIR", "./templates_sql")
}

func (EnvVars) GetSuperAdminEmail() string {
	return GetEnv("SUPER_ADMIN_EMAIL", "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
