package constants

// Static route constants
const (
	PublicRoute       = "/"
	MonitorsRoute     = "/monitors"
	AlertsRoute       = "/alerts"
	IntegrationsRoute = "/integrations"
	BillingRoute      = "/billing"
)
