package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/FunctionalFactory/music-assistant-v2/internal/analyzer"
	"github.com/FunctionalFactory/music-assistant-v2/internal/config"
	"github.com/FunctionalFactory/music-assistant-v2/internal/store"
	"github.com/FunctionalFactory/music-assistant-v2/internal/wav"
)

// TaskManager runs analysis tasks in the background and records their
// lifecycle in the store.
type TaskManager struct {
	config *config.Config
	store  *store.Store
	logger *slog.Logger
}

// NewTaskManager creates a new task manager.
func NewTaskManager(cfg *config.Config, st *store.Store, logger *slog.Logger) *TaskManager {
	return &TaskManager{config: cfg, store: st, logger: logger}
}

// Create registers a new pending task and returns its opaque ID.
func (m *TaskManager) Create(ctx context.Context, filename string) (*store.Task, error) {
	return m.store.Create(ctx, uuid.NewString(), filename)
}

// Process decodes the input file and runs the full pipeline, persisting
// either the complete result or the failure. The input file is removed
// when processing ends.
func (m *TaskManager) Process(taskID, inputPath string, params analyzer.Params) {
	ctx := context.Background()
	defer os.Remove(inputPath)

	if err := m.store.MarkProcessing(ctx, taskID); err != nil {
		m.logger.Error("mark processing", slog.String("task", taskID), slog.Any("error", err))
		return
	}

	start := time.Now()
	result, err := m.runAnalysis(ctx, inputPath, params)
	if err != nil {
		m.logger.Warn("analysis failed",
			slog.String("task", taskID), slog.Any("error", err))
		if storeErr := m.store.Fail(ctx, taskID, err.Error()); storeErr != nil {
			m.logger.Error("record failure", slog.String("task", taskID), slog.Any("error", storeErr))
		}
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		m.logger.Error("marshal result", slog.String("task", taskID), slog.Any("error", err))
		_ = m.store.Fail(ctx, taskID, "internal error encoding result")
		return
	}

	if err := m.store.Complete(ctx, taskID, string(resultJSON), result.MusicXML); err != nil {
		m.logger.Error("record result", slog.String("task", taskID), slog.Any("error", err))
		return
	}

	m.logger.Info("analysis complete",
		slog.String("task", taskID),
		slog.Int("notes", len(result.Notes)),
		slog.Int("onsets", len(result.Onsets)),
		slog.Duration("elapsed", time.Since(start)))
}

func (m *TaskManager) runAnalysis(ctx context.Context, inputPath string, params analyzer.Params) (*analyzer.Result, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := wav.Decode(f)
	if err != nil {
		return nil, err
	}

	return analyzer.Analyze(ctx, buf, params)
}
