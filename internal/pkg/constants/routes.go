package constants

// Route constants
const (
	HealthRoute      = "/healthz"
	WebhooksRoute    = "/webhooks"
	WooCommercePath  = "/woocommerce"
	OperatorRoute    = "/operator"
	DocsBasePath     = "/docs/api/"
	DocsVersionPath  = "v1"
	OpenAPIDocsFile  = "public/docs/v1/openapi.yml"
	OperatorMetrics  = "/metrics"
	OperatorStats    = "/stats"
	OperatorPackages = "/packages/report"
)
