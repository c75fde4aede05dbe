package httpapi_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulmoscan/pulmoscan/internal/classifier/httpapi"
	"github.com/pulmoscan/pulmoscan/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(baseURL string, timeout time.Duration) *httpapi.Client {
	return httpapi.NewClient(config.HTTPClassifierConfig{
		BaseURL: baseURL,
		Model:   "covid",
	}, timeout)
}

func TestClassifyMany_Success(t *testing.T) {
	var gotPath string
	var gotBody struct {
		Images []string `json:"images"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"label":"COVID","confidence":0.88,"top_classes":[{"label":"COVID","confidence":0.88}],"inference_time_ms":14.2},
			{"label":"NORMAL","confidence":0.95,"top_classes":[{"label":"NORMAL","confidence":0.95}],"inference_time_ms":11.0}
		]}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5*time.Second)
	results, err := c.ClassifyMany(context.Background(), [][]byte{[]byte("img1"), []byte("img2")})
	require.NoError(t, err)

	assert.Equal(t, "/v1/models/covid/classify", gotPath)
	require.Len(t, gotBody.Images, 2)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("img1")), gotBody.Images[0])

	require.Len(t, results, 2)
	assert.Equal(t, "COVID", results[0].Label)
	assert.InDelta(t, 0.88, results[0].Confidence, 0.001)
	assert.Equal(t, 14.2, results[0].InferenceTimeMS)
	assert.Equal(t, "NORMAL", results[1].Label)
}

func TestClassifyOne_DelegatesToBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"label":"PNEUMONIA","confidence":0.7}]}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5*time.Second)
	result, err := c.ClassifyOne(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "PNEUMONIA", result.Label)
}

func TestClassifyMany_EmptyBatch(t *testing.T) {
	// Must not touch the network at all.
	c := newClient("http://127.0.0.1:1", time.Second)
	results, err := c.ClassifyMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClassifyMany_MisalignedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"label":"COVID","confidence":0.9}]}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5*time.Second)
	_, err := c.ClassifyMany(context.Background(), [][]byte{[]byte("a"), []byte("b")})
	assert.ErrorIs(t, err, httpapi.ErrInvalidResponse)
}

func TestClassifyMany_EngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5*time.Second)
	_, err := c.ClassifyMany(context.Background(), [][]byte{[]byte("a")})
	assert.ErrorIs(t, err, httpapi.ErrEngineUnavailable)
}

func TestClassifyMany_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5*time.Second)
	_, err := c.ClassifyMany(context.Background(), [][]byte{[]byte("a")})
	assert.ErrorIs(t, err, httpapi.ErrInvalidResponse)
}

func TestClassifyMany_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"results":[{"label":"COVID","confidence":0.9}]}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, 50*time.Millisecond)
	_, err := c.ClassifyMany(context.Background(), [][]byte{[]byte("a")})
	assert.ErrorIs(t, err, httpapi.ErrInferenceTimeout)
}

func TestClassifyMany_ConnectionRefused(t *testing.T) {
	c := newClient("http://127.0.0.1:1", time.Second)
	_, err := c.ClassifyMany(context.Background(), [][]byte{[]byte("a")})
	assert.ErrorIs(t, err, httpapi.ErrEngineUnavailable)
}

func TestClassifyMany_ClampsConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"label":"A","confidence":1.7},{"label":"B","confidence":-0.2}]}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5*time.Second)
	results, err := c.ClassifyMany(context.Background(), [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, 1.0, results[0].Confidence)
	assert.Equal(t, 0.0, results[1].Confidence)
}
