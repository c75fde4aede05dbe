package classifier

import "github.com/pulmoscan/pulmoscan/internal/classifier/httpapi"

// Re-exported engine sentinels so callers don't need to know which adapter
// produced them.
var (
	ErrEngineUnavailable = httpapi.ErrEngineUnavailable
	ErrInferenceTimeout  = httpapi.ErrInferenceTimeout
	ErrInvalidResponse   = httpapi.ErrInvalidResponse
)
