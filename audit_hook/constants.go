package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated = "account.created"

	// Token actions
	ActionTokensMinted      = "tokens.minted"
	ActionTokensBurned      = "tokens.burned"
	ActionTokensTransferred = "tokens.transferred"
	ActionBalanceAdjusted   = "balance.adjusted"

	// Rejections
	ActionPermissionDenied    = "permission.denied"
	ActionBalanceInsufficient = "balance.insufficient"
	ActionOperationFailed     = "operation.failed"
)

// Resource constants for audit events.
const (
	ResourceAccount   = "account"
	ResourceOperation = "operation"
)

// Category constants for audit events.
const (
	CategoryAccount = "account"
	CategoryTokens  = "tokens"
	CategoryAccess  = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
