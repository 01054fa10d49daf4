package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/FunctionalFactory/music-assistant-v2/internal/analyzer"
	apperrors "github.com/FunctionalFactory/music-assistant-v2/internal/errors"
	"github.com/FunctionalFactory/music-assistant-v2/internal/store"
	"github.com/FunctionalFactory/music-assistant-v2/internal/workspace"
)

// taskResponse is returned when a task is accepted.
type taskResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// statusResponse reports task state and, on completion, the full result.
type statusResponse struct {
	TaskID string          `json:"task_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleCreateAnalysis accepts a WAV upload plus optional sensitivity
// parameters and queues a background analysis task.
func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadSize)

	if err := r.ParseMultipartForm(s.config.Server.MaxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("upload too large, maximum is %dMB", s.config.Server.MaxUploadSize/(1024*1024)))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing audio file field 'file'")
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".wav" {
		s.writeError(w, http.StatusBadRequest, "unsupported format, upload a WAV file")
		return
	}

	params, err := s.requestParams(r, header.Filename)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := workspace.Create()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}

	inputPath, err := ws.SaveInput(file)
	if err != nil {
		_ = ws.Cleanup()
		s.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	task, err := s.tasks.Create(r.Context(), header.Filename)
	if err != nil {
		_ = ws.Cleanup()
		s.writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	go func() {
		defer ws.Cleanup()
		s.tasks.Process(task.ID, inputPath, params)
	}()

	s.writeJSON(w, http.StatusAccepted, taskResponse{
		TaskID:  task.ID,
		Message: "analysis task queued",
	})
}

// handleTaskStatus returns task state, with the full result body once the
// task completes.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.lookupTask(w, r)
	if !ok {
		return
	}

	resp := statusResponse{TaskID: task.ID, Status: task.Status}
	switch task.Status {
	case store.StatusComplete:
		resp.Result = json.RawMessage(task.ResultJSON)
	case store.StatusFailed:
		resp.Error = task.Error
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDownloadScore serves the MusicXML document of a completed task.
func (s *Server) handleDownloadScore(w http.ResponseWriter, r *http.Request) {
	task, ok := s.lookupTask(w, r)
	if !ok {
		return
	}

	if task.Status != store.StatusComplete || task.MusicXML == "" {
		s.writeError(w, http.StatusConflict, "score not available, task status: "+task.Status)
		return
	}

	name := strings.TrimSuffix(task.Filename, filepath.Ext(task.Filename))
	if name == "" {
		name = task.ID
	}
	w.Header().Set("Content-Type", "application/vnd.recordare.musicxml+xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".musicxml"))
	w.Write([]byte(task.MusicXML))
}

func (s *Server) lookupTask(w http.ResponseWriter, r *http.Request) (*store.Task, bool) {
	id := chi.URLParam(r, "id")
	task, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrTaskNotFound) {
			s.writeError(w, http.StatusNotFound, "task not found")
		} else {
			s.writeError(w, http.StatusInternalServerError, "failed to load task")
		}
		return nil, false
	}
	return task, true
}

// requestParams merges configured defaults with per-request overrides.
// Range violations are rejected here, before any work is queued.
func (s *Server) requestParams(r *http.Request, filename string) (analyzer.Params, error) {
	a := s.config.Analysis
	params := analyzer.Params{
		Delta:             a.Delta,
		Wait:              a.Wait,
		FrameSize:         a.FrameSize,
		HopSize:           a.HopSize,
		MaxWaveformPoints: a.MaxWaveformPoints,
		GridWidth:         a.GridWidth,
		GridHeight:        a.GridHeight,
		Title:             strings.TrimSuffix(filename, filepath.Ext(filename)),
	}

	var err error
	if params.Delta, err = formFloat(r, "delta", params.Delta); err != nil {
		return params, err
	}
	if params.Wait, err = formFloat(r, "wait", params.Wait); err != nil {
		return params, err
	}
	if params.BPM, err = formFloat(r, "bpm", 0); err != nil {
		return params, err
	}

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

func formFloat(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
