package errors

// Error codes returned in the "error" field of every failed response.
// Format: CATEGORY_SPECIFIC_DETAIL. Clients map these to their own copy.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized = "AUTH_UNAUTHORIZED"
	AuthTokenExpired = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid = "AUTH_TOKEN_INVALID"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT"
	ValidationRequired      = "VALIDATION_REQUIRED"

	// ==================== Cart (CART_) ====================
	CartOwnerMissing    = "CART_OWNER_MISSING"    // no user or session could be resolved
	CartMalformedAction = "CART_MALFORMED_ACTION" // known action type, undecodable payload
	CartUnpricedProduct = "CART_UNPRICED_PRODUCT" // rejected by the unpriced-product policy
	CartStorageFailure  = "CART_STORAGE_FAILURE"  // snapshot backend unreachable
	CartExportFailed    = "CART_EXPORT_FAILED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
	InternalTimeout       = "INTERNAL_TIMEOUT"
)
