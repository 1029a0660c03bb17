package constants

const (
	// Environment constants
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// HTTP Headers
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderTelegramToken = "X-Telegram-Bot-Api-Secret-Token"

	// Content Types
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// Query parameters carrying credentials
	QueryParamUpdateID = "id"
	QueryParamAPIKey   = "API_KEY"

	// Database table names
	TableRegions               = "regions"
	TableICUs                  = "icus"
	TableUsers                 = "users"
	TableICUOperators          = "icu_operators"
	TableICUManagers           = "icu_managers"
	TableBedCounts             = "bed_counts"
	TableUpdateTokens          = "update_tokens"
	TableExternalClients       = "external_clients"
	TableExternalClientRegions = "external_client_regions"
)
