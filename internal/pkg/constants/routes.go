package constants

// Static route constants
const (
	APIRoute   = "/api/v1"
	AdminRoute = "/admin"

	EntitlementCheckRoute = "/entitlement/check"
	GenerateRoute         = "/generate"
	PaymentWebhookRoute   = "/payments/webhook"
	ClaimSubmitRoute      = "/payments/claims"

	AdminClaimsRoute             = "/claims"
	AdminClaimDecideRoute        = "/claims/:uuid/decision"
	AdminStatsRoute              = "/stats"
	AdminTransactionsRoute       = "/transactions"
	AdminTransactionsExportRoute = "/transactions/export"
	AdminResetRoute              = "/reset"
)
