package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/database"
	"github.com/ZanzyTHEbar/contribution-proof/internal/encoding"
	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
	"github.com/ZanzyTHEbar/contribution-proof/internal/extract"
	"github.com/ZanzyTHEbar/contribution-proof/internal/proof"
	"github.com/ZanzyTHEbar/contribution-proof/internal/types"
	"github.com/gin-gonic/gin"
)

// multipart parts beyond this stay on disk while parsing
const multipartMemory = 8 << 20

// handleHealth godoc
// @Summary      Service health
// @Tags         system
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Router       /health [get]
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthResponse{
		Status:    "ok",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Metrics:   s.metrics.GetStats(),
	})
}

// handleCreateProof godoc
// @Summary      Generate a proof of contribution
// @Description  Scores the uploaded dataset files. Zip archives are unpacked first.
// @Tags         proofs
// @Accept       multipart/form-data
// @Produce      json
// @Param        files   formData  file    true   "dataset files"
// @Param        dlp_id  formData  string  false  "pool identifier override"
// @Success      200  {object}  types.ProofCreatedResponse  "cached result"
// @Success      201  {object}  types.ProofCreatedResponse
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      422  {object}  errors.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/proofs [post]
func (s *Server) handleCreateProof(c *gin.Context) {
	start := time.Now()

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			s.fail(c, errors.NewValidationError("upload exceeds size limit", fmt.Sprintf("%d bytes", maxErr.Limit)))
			return
		}
		s.fail(c, errors.NewValidationError("invalid multipart upload", err.Error()))
		return
	}
	defer form.RemoveAll()

	headers := form.File["files"]
	if len(headers) == 0 {
		s.fail(c, errors.NewValidationError("no dataset files uploaded", "files"))
		return
	}

	dlpID := s.cfg.ProofDLPID()
	if override := c.PostForm("dlp_id"); override != "" {
		dlpID = proof.ParseDLPID(override)
	}

	files, err := readUploads(headers)
	if err != nil {
		s.fail(c, err)
		return
	}

	dlpKey, _ := json.Marshal(dlpID)
	digest, err := encoding.DatasetDigest(string(dlpKey), files)
	if err != nil {
		s.fail(c, errors.NewInternalError("failed to compute dataset digest", err))
		return
	}

	if cached, ok := s.cachedProof(digest); ok {
		s.metrics.IncrementCacheHit()
		c.JSON(http.StatusOK, cached)
		return
	}
	s.metrics.IncrementCacheMiss()

	resp, err := s.generateFromUploads(files, dlpID)
	if err != nil {
		s.fail(c, err)
		return
	}

	created := types.ProofCreatedResponse{
		Digest: digest,
		Proof:  resp,
	}

	if s.history != nil {
		run, err := s.history.RecordProof(c.Request.Context(), resp, digest, database.SourceAPI)
		if err != nil {
			s.fail(c, errors.NewInternalError("failed to record proof run", err))
			return
		}
		created.ID = run.ID
	}

	s.metrics.RecordProof(resp.Valid)
	s.logger.ProofLogger(dlpID.String(), resp.FamilySize(), resp.Score, resp.Valid, time.Since(start), database.SourceAPI)

	if encoded, err := json.Marshal(created); err == nil {
		s.cache.Set(digest, encoded)
	}

	c.JSON(http.StatusCreated, created)
}

func (s *Server) fail(c *gin.Context, err error) {
	appErr := errors.ToAppError(err)
	switch appErr.Category {
	case errors.CategoryMissingInput, errors.CategoryParse, errors.CategoryFilesystem, errors.CategoryValidation:
		s.metrics.RecordProofFailure(string(appErr.Category))
	}
	_ = c.Error(appErr)
}

func (s *Server) cachedProof(digest string) (*types.ProofCreatedResponse, bool) {
	data, ok := s.cache.Get(digest)
	if !ok {
		return nil, false
	}

	var cached types.ProofCreatedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		s.cache.Delete(digest)
		return nil, false
	}
	cached.Cached = true
	return &cached, true
}

// readUploads loads every uploaded file keyed by its base name
func readUploads(headers []*multipart.FileHeader) (map[string][]byte, error) {
	files := make(map[string][]byte, len(headers))
	for _, header := range headers {
		name := filepath.Base(filepath.Clean("/" + header.Filename))
		if name == "/" || name == "." || name == "" {
			return nil, errors.NewValidationError("uploaded file has no name", header.Filename)
		}
		if _, dup := files[name]; dup {
			return nil, errors.NewValidationError("duplicate file name in upload", name)
		}

		f, err := header.Open()
		if err != nil {
			return nil, errors.NewFilesystemError("failed to open uploaded file", name, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.NewFilesystemError("failed to read uploaded file", name, err)
		}
		files[name] = data
	}
	return files, nil
}

// generateFromUploads stages files in a private directory and scores them
func (s *Server) generateFromUploads(files map[string][]byte, dlpID proof.DLPID) (*proof.ProofResponse, error) {
	stage, err := os.MkdirTemp("", "proof-upload-*")
	if err != nil {
		return nil, errors.NewFilesystemError("failed to create staging directory", "", err)
	}
	defer os.RemoveAll(stage)

	for name, data := range files {
		path := filepath.Join(stage, name)
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, errors.NewFilesystemError("failed to stage uploaded file", name, err)
		}
	}

	extractor := extract.NewExtractor(s.cfg.Server.MaxUploadBytes, s.logger.Logger)
	if _, err := extractor.Archives(stage); err != nil {
		return nil, err
	}

	return s.generator.Generate(proof.Config{InputDir: stage, DLPID: dlpID})
}

// handleGetProof godoc
// @Summary      Get a recorded proof run
// @Tags         proofs
// @Produce      json
// @Param        id   path      string  true  "run id"
// @Success      200  {object}  database.ProofRun
// @Failure      404  {object}  errors.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/proofs/{id} [get]
func (s *Server) handleGetProof(c *gin.Context) {
	if s.history == nil {
		_ = c.Error(errors.NewNotFoundError("proof run", c.Param("id")))
		return
	}

	run, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// handleListProofs godoc
// @Summary      List recent proof runs
// @Tags         proofs
// @Produce      json
// @Param        limit  query     int  false  "maximum runs (default 20, max 100)"
// @Success      200    {object}  types.RunListResponse
// @Failure      400    {object}  errors.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/proofs [get]
func (s *Server) handleListProofs(c *gin.Context) {
	limit := database.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = c.Error(errors.NewValidationError("limit must be a positive integer", raw))
			return
		}
		limit = n
	}

	runs := []*database.ProofRun{}
	if s.history != nil {
		var err error
		runs, err = s.history.Recent(c.Request.Context(), limit)
		if err != nil {
			_ = c.Error(errors.NewInternalError("failed to list proof runs", err))
			return
		}
	}

	c.JSON(http.StatusOK, types.RunListResponse{Runs: runs, Count: len(runs)})
}

// handleStats godoc
// @Summary      Proof statistics
// @Tags         system
// @Produce      json
// @Success      200  {object}  types.StatsResponse
// @Security     BearerAuth
// @Router       /v1/stats [get]
func (s *Server) handleStats(c *gin.Context) {
	resp := types.StatsResponse{
		History:     &database.RunStats{BySource: map[string]int{}},
		Metrics:     s.metrics.GetStats(),
		Cache:       s.cache.Stats(),
		Compression: s.gzip.GetStats(),
	}

	if s.history != nil {
		stats, err := s.history.Stats(c.Request.Context())
		if err != nil {
			_ = c.Error(errors.NewInternalError("failed to aggregate proof runs", err))
			return
		}
		resp.History = stats
	}
	if s.limiter != nil {
		resp.RateLimit = s.limiter.GetStats()
	}
	if s.db != nil {
		resp.Database = s.db.GetPoolStats()
	}

	c.JSON(http.StatusOK, resp)
}
