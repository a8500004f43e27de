package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/biomatch"
	"github.com/hupe1980/biomatch/extractor"
	"github.com/hupe1980/biomatch/model"
	"github.com/hupe1980/biomatch/store"
)

func newTestServer(t *testing.T, table map[string][]float32, opts Options) *Server {
	t.Helper()

	ext := extractor.Func(func(_ context.Context, _ model.Type, image []byte) ([]float32, error) {
		vec, ok := table[string(image)]
		if !ok {
			return nil, extractor.ErrNoBiometricDetected
		}
		return vec, nil
	})

	engine, err := biomatch.New(ext, store.NewMemoryStore(nil))
	require.NoError(t, err)

	t.Cleanup(func() { _ = engine.Close() })

	return NewServer(engine, opts)
}

func sampleRequest(t *testing.T, target, typ string, image []byte, metadata string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	require.NoError(t, w.WriteField("type", typ))
	if metadata != "" {
		require.NoError(t, w.WriteField("metadata", metadata))
	}

	fw, err := w.CreateFormFile("image", "sample.jpg")
	require.NoError(t, err)
	_, err = fw.Write(image)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestRegisterCompareDeleteFlow(t *testing.T) {
	srv := newTestServer(t, map[string][]float32{
		"alice": {1, 0, 0},
		"probe": {9, 1, 0},
	}, Options{})
	app := srv.App()

	resp, err := app.Test(sampleRequest(t, "/api/v1/biometric/register", "face", []byte("alice"), `{"site":"hq"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	rec := decode[RecordResponse](t, resp)
	assert.Regexp(t, `^FACE-[A-Z0-9]{12}$`, rec.ID)
	assert.Equal(t, "face", rec.Type)
	assert.Equal(t, "hq", rec.Metadata["site"])

	resp, err = app.Test(sampleRequest(t, "/api/v1/biometric/compare", "face", []byte("probe"), ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	match := decode[CompareResponse](t, resp)
	assert.Equal(t, rec.ID, match.ID)
	assert.Greater(t, match.Score, 0.8)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/biometric/"+rec.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/biometric/"+rec.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/biometric/"+rec.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterDuplicateConflict(t *testing.T) {
	srv := newTestServer(t, map[string][]float32{"alice": {1, 0}}, Options{})
	app := srv.App()

	resp, err := app.Test(sampleRequest(t, "/api/v1/biometric/register", "face", []byte("alice"), ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decode[RecordResponse](t, resp)

	resp, err = app.Test(sampleRequest(t, "/api/v1/biometric/register", "face", []byte("alice"), ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, first.ID, body.ConflictID)
	require.NotNil(t, body.Score)
	assert.InDelta(t, 1.0, *body.Score, 1e-9)
}

func TestCompareNoMatch(t *testing.T) {
	srv := newTestServer(t, map[string][]float32{"probe": {1, 0}}, Options{})

	resp, err := srv.App().Test(sampleRequest(t, "/api/v1/biometric/compare", "palm", []byte("probe"), ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnprocessableSample(t *testing.T) {
	srv := newTestServer(t, map[string][]float32{}, Options{})

	resp, err := srv.App().Test(sampleRequest(t, "/api/v1/biometric/register", "face", []byte("noise"), ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t, map[string][]float32{"x": {1, 0}}, Options{})
	app := srv.App()

	// Unknown biometric type.
	resp, err := app.Test(sampleRequest(t, "/api/v1/biometric/register", "iris", []byte("x"), ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing image file.
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("type", "face"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/biometric/register", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Malformed metadata JSON.
	resp, err = app.Test(sampleRequest(t, "/api/v1/biometric/register", "face", []byte("x"), "not-json"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListPaginationAndFilter(t *testing.T) {
	// Orthogonal embeddings so none of them trips deduplication.
	table := make(map[string][]float32)
	for i := 0; i < 5; i++ {
		vec := make([]float32, 5)
		vec[i] = 1
		table[fmt.Sprintf("p%d", i)] = vec
	}

	srv := newTestServer(t, table, Options{})
	app := srv.App()

	for i := 0; i < 5; i++ {
		meta := `{"batch":"a"}`
		if i >= 3 {
			meta = `{"batch":"b"}`
		}

		resp, err := app.Test(sampleRequest(t, "/api/v1/biometric/register", "face", []byte(fmt.Sprintf("p%d", i)), meta))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/biometric/?page=2&limit=2&type=face", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page := decode[ListResponse](t, resp)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Page)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/biometric/?meta.batch=b", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	filtered := decode[ListResponse](t, resp)
	assert.Equal(t, 2, filtered.Total)
	for _, rec := range filtered.Data {
		assert.Equal(t, "b", rec.Metadata["batch"])
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t, map[string][]float32{"x": {1, 0}}, Options{APIKey: "secret"})
	app := srv.App()

	// No key.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/biometric/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong key.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/biometric/", nil)
	req.Header.Set("X-API-Key", "nope")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct key.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/biometric/", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health stays open.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
