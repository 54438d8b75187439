package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tugdual/shopsight/internal/store"
	"github.com/tugdual/shopsight/internal/training"
)

type startTrainingRequest struct {
	Type   string `json:"type"`
	Epochs int    `json:"epochs"`
}

type trainingRunResponse struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	TotalEpochs   int     `json:"total_epochs"`
	Outcome       string  `json:"outcome"`
	FinalLoss     float64 `json:"final_loss"`
	FinalAccuracy float64 `json:"final_accuracy"`
	Message       string  `json:"message"`
	StartedAt     string  `json:"started_at"`
	FinishedAt    string  `json:"finished_at,omitempty"`
}

type trainingHistoryResponse struct {
	Runs []trainingRunResponse `json:"runs"`
}

// handleTrainingStart handles POST /api/training/start.
func (s *Server) handleTrainingStart(w http.ResponseWriter, r *http.Request) {
	var req startTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	if err := s.config.Training.Start(req.Type, req.Epochs); err != nil {
		if errors.Is(err, training.ErrAlreadyRunning) {
			writeResult(w, http.StatusOK, false, "Training already in progress")
			return
		}
		writeResult(w, http.StatusInternalServerError, false, "Failed to start training")
		return
	}

	writeResult(w, http.StatusOK, true, "Training started")
}

// handleTrainingStop handles POST /api/training/stop. Cancellation is
// cooperative; the current epoch finishes before the job observes the stop.
func (s *Server) handleTrainingStop(w http.ResponseWriter, r *http.Request) {
	s.config.Training.Stop()
	writeResult(w, http.StatusOK, true, "Training stopped")
}

// handleTrainingStatus handles GET /api/training/status.
func (s *Server) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Training.Status())
}

// handleTrainingHistory handles GET /api/training/history.
func (s *Server) handleTrainingHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.config.Store.Runs().List()
	if err != nil {
		s.config.Log.Error().Err(err).Msg("failed to list training runs")
		writeResult(w, http.StatusInternalServerError, false, "Failed to list training runs")
		return
	}

	response := trainingHistoryResponse{
		Runs: make([]trainingRunResponse, 0, len(runs)),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, response)
}

// toRunResponse converts a store.TrainingRun to its JSON shape.
func toRunResponse(run *store.TrainingRun) trainingRunResponse {
	resp := trainingRunResponse{
		ID:            run.ID,
		Type:          run.Type,
		TotalEpochs:   run.TotalEpochs,
		Outcome:       run.Outcome,
		FinalLoss:     run.FinalLoss,
		FinalAccuracy: run.FinalAccuracy,
		Message:       run.Message,
		StartedAt:     run.StartedAt.Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		resp.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return resp
}
