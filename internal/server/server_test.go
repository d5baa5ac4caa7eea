package server

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/config"
	"github.com/ZanzyTHEbar/contribution-proof/internal/database"
	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
	"github.com/ZanzyTHEbar/contribution-proof/internal/monitoring"
	"github.com/ZanzyTHEbar/contribution-proof/internal/proof"
	"github.com/ZanzyTHEbar/contribution-proof/internal/ratelimit"
	"github.com/ZanzyTHEbar/contribution-proof/internal/security"
	"github.com/ZanzyTHEbar/contribution-proof/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testOptions struct {
	jwtSecret string
	perMin    int
}

func newTestServer(t *testing.T, opts testOptions) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Proof.DLPID = "1234"
	cfg.Server.JWTSecret = opts.jwtSecret
	if opts.perMin > 0 {
		cfg.Server.RateLimitPerMin = opts.perMin
	}

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := monitoring.NewLoggerWithWriter(io.Discard, slog.LevelError)
	metrics := monitoring.NewMetrics()

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.IPLimitPerMin = cfg.Server.RateLimitPerMin
	limiter := ratelimit.NewRateLimiter(nil, limiterConfig, metrics)
	t.Cleanup(limiter.Close)

	return New(Dependencies{
		Config:  cfg,
		History: database.NewHistoryService(database.NewRepository(db), logger.Logger),
		DB:      db,
		Limiter: limiter,
		Metrics: metrics,
		Logger:  logger,
	})
}

type upload struct {
	name    string
	content []byte
}

func uploadRequest(t *testing.T, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		part, err := writer.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/proofs", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeCreated(t *testing.T, w *httptest.ResponseRecorder) types.ProofCreatedResponse {
	t.Helper()
	var resp types.ProofCreatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.NotNil(t, resp.Proof)
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errors.ErrorResponse {
	t.Helper()
	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, testOptions{})

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET /health returns OK status", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST /health is not routed", method: http.MethodPost, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, httptest.NewRequest(tt.method, "/health", nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var health types.HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
				assert.Equal(t, "ok", health.Status)
				assert.Equal(t, Version, health.Version)
				assert.NotEmpty(t, health.Metrics)
			}
		})
	}
}

func TestCreateProof(t *testing.T) {
	s := newTestServer(t, testOptions{})
	members := []byte(`[{"name":"a"},{"name":"b"},{"name":"c"}]`)

	w := serve(s, uploadRequest(t, []upload{
		{name: "members.json", content: members},
		{name: "notes.json", content: []byte(`{"note":true}`)},
	}, nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decodeCreated(t, w)
	assert.NotEmpty(t, created.ID)
	assert.Contains(t, created.Digest, "sha256:")
	assert.False(t, created.Cached)
	assert.Equal(t, proof.IntDLPID(1234), created.Proof.DLPID)
	assert.InDelta(t, 0.76, created.Proof.Score, 1e-12)
	assert.InDelta(t, 0.6, created.Proof.Quality, 1e-12)
	assert.True(t, created.Proof.Valid)
	assert.Equal(t, 3, created.Proof.FamilySize())

	again := serve(s, uploadRequest(t, []upload{
		{name: "notes.json", content: []byte(`{"note":true}`)},
		{name: "members.json", content: members},
	}, nil))
	require.Equal(t, http.StatusOK, again.Code)
	cached := decodeCreated(t, again)
	assert.True(t, cached.Cached)
	assert.Equal(t, created.ID, cached.ID)
	assert.Equal(t, created.Digest, cached.Digest)

	assert.Equal(t, int64(1), s.metrics.CacheHits)
}

func TestCreateProofDLPIDOverride(t *testing.T) {
	s := newTestServer(t, testOptions{})

	w := serve(s, uploadRequest(t, []upload{{name: "members.json", content: []byte(`[]`)}},
		map[string]string{"dlp_id": "pool-x"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decodeCreated(t, w)
	assert.Equal(t, proof.StringDLPID("pool-x"), created.Proof.DLPID)
	assert.InDelta(t, 0.4, created.Proof.Score, 1e-12)
	assert.False(t, created.Proof.Valid)
	assert.Contains(t, w.Body.String(), `"dlp_id":"pool-x"`)
}

func TestCreateProofFromZip(t *testing.T) {
	s := newTestServer(t, testOptions{})

	archive := &bytes.Buffer{}
	zw := zip.NewWriter(archive)
	entry, err := zw.Create("members.json")
	require.NoError(t, err)
	_, err = entry.Write([]byte(`[1,2,3,4,5]`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	w := serve(s, uploadRequest(t, []upload{{name: "dataset.zip", content: archive.Bytes()}}, nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decodeCreated(t, w)
	assert.InDelta(t, 1.0, created.Proof.Score, 1e-12)
	assert.Equal(t, 5, created.Proof.FamilySize())
}

func TestCreateProofFailures(t *testing.T) {
	tests := []struct {
		name     string
		files    []upload
		status   int
		category errors.ErrorCategory
	}{
		{
			name:     "members file missing",
			files:    []upload{{name: "other.json", content: []byte(`{}`)}},
			status:   http.StatusUnprocessableEntity,
			category: errors.CategoryMissingInput,
		},
		{
			name:     "invalid JSON",
			files:    []upload{{name: "members.json", content: []byte(`[1,2`)}},
			status:   http.StatusBadRequest,
			category: errors.CategoryParse,
		},
		{
			name:     "members is not an array",
			files:    []upload{{name: "members.json", content: []byte(`{"a":1}`)}},
			status:   http.StatusBadRequest,
			category: errors.CategoryParse,
		},
		{
			name: "duplicate names",
			files: []upload{
				{name: "members.json", content: []byte(`[]`)},
				{name: "dir/members.json", content: []byte(`[]`)},
			},
			status:   http.StatusBadRequest,
			category: errors.CategoryValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testOptions{})
			w := serve(s, uploadRequest(t, tt.files, nil))

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.category, decodeError(t, w).Category)
		})
	}
}

func TestCreateProofWithoutFiles(t *testing.T) {
	s := newTestServer(t, testOptions{})

	w := serve(s, uploadRequest(t, nil, map[string]string{"dlp_id": "1"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CategoryValidation, decodeError(t, w).Category)

	req := httptest.NewRequest(http.MethodPost, "/v1/proofs", bytes.NewBufferString("hello"))
	req.Header.Set("Content-Type", "text/plain")
	w = serve(s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAndListProofs(t *testing.T) {
	s := newTestServer(t, testOptions{})

	var ids []string
	for _, members := range []string{`[1]`, `[1,2]`, `[1,2,3]`} {
		w := serve(s, uploadRequest(t, []upload{{name: "members.json", content: []byte(members)}}, nil))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		ids = append(ids, decodeCreated(t, w).ID)
		time.Sleep(2 * time.Millisecond)
	}

	w := serve(s, httptest.NewRequest(http.MethodGet, "/v1/proofs/"+ids[1], nil))
	require.Equal(t, http.StatusOK, w.Code)
	var run database.ProofRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, ids[1], run.ID)
	assert.Equal(t, 2, run.FamilySize)
	assert.Equal(t, database.SourceAPI, run.Source)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/v1/proofs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.CategoryNotFound, decodeError(t, w).Category)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/v1/proofs?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list types.RunListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, ids[2], list.Runs[0].ID)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/v1/proofs?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats types.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.History.Total)
	assert.Equal(t, 3, stats.History.Valid)
	assert.Equal(t, 3, stats.History.BySource[database.SourceAPI])
	assert.NotEmpty(t, stats.Database)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	s := newTestServer(t, testOptions{jwtSecret: "server-secret"})

	w := serve(s, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health stays public")

	token, err := security.NewAuthenticator("server-secret").IssueToken("uploader", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(s, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitOnV1(t *testing.T) {
	s := newTestServer(t, testOptions{perMin: 1})

	w := serve(s, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, errors.CategoryRateLimit, decodeError(t, w).Category)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSwaggerDocs(t *testing.T) {
	s := newTestServer(t, testOptions{})

	w := serve(s, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/v1/proofs")
}

func TestGzipResponses(t *testing.T) {
	s := newTestServer(t, testOptions{})

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/v1/proofs")

	w = serve(s, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	var stats types.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.Compression["compressed_requests"])
}
