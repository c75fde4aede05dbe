// Package classifier selects and constructs inference engine adapters.
package classifier

import (
	"fmt"

	"github.com/pulmoscan/pulmoscan/internal/classifier/httpapi"
	"github.com/pulmoscan/pulmoscan/internal/classifier/mock"
	"github.com/pulmoscan/pulmoscan/internal/config"
	"github.com/pulmoscan/pulmoscan/pkg/models"
)

// New constructs the appropriate classifier based on config.
// Called once at server startup.
func New(cfg config.ClassifierConfig) (models.Classifier, error) {
	switch cfg.Provider {
	case "http":
		return httpapi.NewClient(cfg.HTTP, cfg.InferenceTimeout), nil
	case "mock":
		return mock.NewClassifier(), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q: must be one of http, mock", cfg.Provider)
	}
}
