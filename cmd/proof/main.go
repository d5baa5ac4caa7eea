package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/config"
	"github.com/ZanzyTHEbar/contribution-proof/internal/database"
	"github.com/ZanzyTHEbar/contribution-proof/internal/encoding"
	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
	"github.com/ZanzyTHEbar/contribution-proof/internal/extract"
	"github.com/ZanzyTHEbar/contribution-proof/internal/monitoring"
	"github.com/ZanzyTHEbar/contribution-proof/internal/proof"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLogger(monitoring.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger.Logger)

	logger.Info("Using configuration",
		"dlp_id", cfg.Proof.DLPID,
		"input_dir", cfg.Proof.InputDir,
		"output_dir", cfg.Proof.OutputDir,
		"user_email_set", cfg.Proof.UserEmail != "")

	if err := run(context.Background(), cfg, logger); err != nil {
		appErr := errors.ToAppError(err)
		errors.LogError(logger.Logger, appErr)
		os.Exit(1)
	}
}

// run executes one proof job: extract, score, publish, record
func run(ctx context.Context, cfg *config.Config, logger *monitoring.Logger) error {
	start := time.Now()
	inputDir := cfg.Proof.InputDir

	dataset, err := readDataset(inputDir)
	if err != nil {
		return err
	}

	extractor := extract.NewExtractor(cfg.Server.MaxUploadBytes, logger.Logger)
	if _, err := extractor.Archives(inputDir); err != nil {
		return err
	}

	generator := proof.NewGenerator(logger.Logger)
	resp, err := generator.Generate(cfg.GeneratorConfig())
	if err != nil {
		return err
	}

	path, err := encoding.WriteResults(cfg.Proof.OutputDir, resp)
	if err != nil {
		return errors.NewFilesystemError("failed to write results", filepath.Join(cfg.Proof.OutputDir, encoding.ResultsFilename), err)
	}
	logger.Debug("Results written", "path", path)

	if cfg.Storage.DataDir != "" {
		if err := recordRun(ctx, cfg, logger, resp, dataset); err != nil {
			logger.Warn("Failed to record proof run", "error", err)
		}
	}

	logger.ProofLogger(resp.DLPID.String(), resp.FamilySize(), resp.Score, resp.Valid, time.Since(start), database.SourceJob)
	return nil
}

// readDataset loads the top-level files of dir. An empty or unreadable directory is an error.
func readDataset(dir string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewFilesystemError("input directory is not readable", dir, err)
	}
	if len(entries) == 0 {
		return nil, errors.NewFilesystemError("input directory is empty", dir, nil)
	}

	files := make(map[string][]byte)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewFilesystemError("failed to read input file", path, err)
		}
		files[entry.Name()] = data
	}
	return files, nil
}

func recordRun(ctx context.Context, cfg *config.Config, logger *monitoring.Logger, resp *proof.ProofResponse, dataset map[string][]byte) error {
	db, err := database.NewDB(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer errors.SafeClose(db, "proof history database")

	dlpKey, err := resp.DLPID.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode dlp_id: %w", err)
	}
	digest, err := encoding.DatasetDigest(string(dlpKey), dataset)
	if err != nil {
		return err
	}

	history := database.NewHistoryService(database.NewRepository(db), logger.Logger)
	run, err := history.RecordProof(ctx, resp, digest, database.SourceJob)
	if err != nil {
		return err
	}

	if _, err := history.Purge(ctx, cfg.Storage.RetentionDays); err != nil {
		logger.Warn("Retention purge failed", "error", err)
	}

	logger.Debug("Proof run recorded", "id", run.ID, "digest", digest)
	return nil
}
