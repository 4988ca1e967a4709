package config

const (
	// EnvPrefix is the envconfig prefix shared by every section.
	EnvPrefix = "FRESHCART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
