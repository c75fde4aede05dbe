package classifier_test

import (
	"testing"
	"time"

	"github.com/pulmoscan/pulmoscan/internal/classifier"
	"github.com/pulmoscan/pulmoscan/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_HTTPProvider(t *testing.T) {
	cl, err := classifier.New(config.ClassifierConfig{
		Provider:         "http",
		InferenceTimeout: 30 * time.Second,
		HTTP: config.HTTPClassifierConfig{
			BaseURL: "http://localhost:8500",
			Model:   "covid",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "http", cl.Name())
}

func TestNew_MockProvider(t *testing.T) {
	cl, err := classifier.New(config.ClassifierConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "mock", cl.Name())
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := classifier.New(config.ClassifierConfig{Provider: "tensorflow"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tensorflow")
}
