package config

const (
	// EnvPrefix namespaces every environment variable consumed by the service.
	EnvPrefix = "condoplex"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvDBDSN  = "CONDOPLEX_DB_DSN"
	EnvDBHost = "CONDOPLEX_DB_HOST"
	EnvDBUser = "CONDOPLEX_DB_USER"
	EnvDBName = "CONDOPLEX_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
