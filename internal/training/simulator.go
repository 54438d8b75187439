// Package training implements the simulated model-training job. The
// simulator produces a synthetic progress signal (decaying loss, climbing
// accuracy with a random perturbation); it does not fit any model.
package training

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tugdual/shopsight/internal/store"
)

// Simulation defaults.
const (
	DefaultEpochs     = 10
	DefaultEpochDelay = 2 * time.Second
	DefaultJobType    = "detection"
)

// ErrAlreadyRunning is returned when starting a job while one is active.
var ErrAlreadyRunning = errors.New("training already in progress")

// Status is a snapshot of the training job state.
type Status struct {
	Running     bool    `json:"is_training"`
	Progress    int     `json:"progress"`
	Epoch       int     `json:"epoch"`
	TotalEpochs int     `json:"total_epochs"`
	Loss        float64 `json:"loss"`
	Accuracy    float64 `json:"accuracy"`
	Message     string  `json:"message"`
}

// Simulator runs at most one simulated training job at a time. Progress is
// advanced by a background goroutine once per epoch; Stop is cooperative and
// takes effect at the next epoch boundary.
type Simulator struct {
	log        zerolog.Logger
	epochDelay time.Duration
	history    *store.RunRepository

	mu            sync.Mutex
	status        Status
	stopCh        chan struct{}
	stopRequested bool
}

// New creates a Simulator with the default epoch delay.
func New(log zerolog.Logger) *Simulator {
	return &Simulator{
		log:        log,
		epochDelay: DefaultEpochDelay,
	}
}

// SetEpochDelay overrides the per-epoch delay. Values less than or equal to
// 0 are ignored. Used by tests to speed up runs.
func (s *Simulator) SetEpochDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochDelay = d
}

// SetHistory attaches a repository that records each run's terminal state.
func (s *Simulator) SetHistory(runs *store.RunRepository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = runs
}

// Start launches a new simulated job. Returns ErrAlreadyRunning if a job is
// active; existing progress is left untouched in that case.
func (s *Simulator) Start(jobType string, epochs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Running {
		return ErrAlreadyRunning
	}

	if jobType == "" {
		jobType = DefaultJobType
	}
	if epochs <= 0 {
		epochs = DefaultEpochs
	}

	s.status = Status{
		Running:     true,
		TotalEpochs: epochs,
		Message:     "Starting training...",
	}
	s.stopCh = make(chan struct{})
	s.stopRequested = false

	runID := uuid.NewString()
	if s.history != nil {
		run := &store.TrainingRun{
			ID:          runID,
			Type:        jobType,
			TotalEpochs: epochs,
			Message:     s.status.Message,
		}
		if err := s.history.Create(run); err != nil {
			s.log.Warn().Err(err).Msg("failed to record training run")
		}
	}

	go s.run(runID, jobType, epochs, s.stopCh)

	s.log.Info().Str("type", jobType).Int("epochs", epochs).Msg("training started")
	return nil
}

// Stop requests cooperative cancellation. The job observes it at the next
// epoch boundary; the in-flight epoch delay always completes first.
// Idempotent, and a no-op when no job is running.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.Running || s.stopRequested {
		return
	}
	close(s.stopCh)
	s.stopRequested = true
}

// Status returns a copy of the current job state.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// run advances the simulated job one epoch at a time until it completes,
// is stopped, or fails.
func (s *Simulator) run(runID, jobType string, epochs int, stop <-chan struct{}) {
	outcome := store.OutcomeCompleted

	defer func() {
		if r := recover(); r != nil {
			outcome = store.OutcomeFailed
			s.mu.Lock()
			s.status.Message = fmt.Sprintf("Error: %v", r)
			s.log.Error().Str("type", jobType).Msgf("training failed: %v", r)
			s.mu.Unlock()
		}
		s.finish(runID, outcome)
	}()

	for epoch := 1; epoch <= epochs; epoch++ {
		select {
		case <-stop:
			outcome = store.OutcomeStopped
			return
		default:
		}

		time.Sleep(s.delay())

		loss := 2.5 - 0.2*float64(epoch-1) + rand.Float64()*0.1
		accuracy := 50 + 4*float64(epoch-1) + rand.Float64()*2

		s.mu.Lock()
		s.status.Epoch = epoch
		s.status.Progress = epoch * 100 / epochs
		s.status.Loss = loss
		s.status.Accuracy = accuracy
		s.status.Message = fmt.Sprintf("Epoch %d/%d - Loss: %.4f", epoch, epochs, loss)
		s.mu.Unlock()
	}
}

func (s *Simulator) delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochDelay
}

// finish records the terminal state of the job. The history row is written
// before the running flag drops, so anyone who observes an idle simulator
// also sees the completed record.
func (s *Simulator) finish(runID, outcome string) {
	s.mu.Lock()
	switch outcome {
	case store.OutcomeCompleted:
		s.status.Message = "Training completed!"
	case store.OutcomeStopped:
		s.status.Message = "Training stopped by user"
	}
	message := s.status.Message
	loss := s.status.Loss
	accuracy := s.status.Accuracy
	history := s.history
	s.mu.Unlock()

	if history != nil {
		if err := history.Finish(runID, outcome, loss, accuracy, message); err != nil {
			s.log.Warn().Err(err).Msg("failed to record training run outcome")
		}
	}

	s.mu.Lock()
	s.status.Running = false
	s.mu.Unlock()

	s.log.Info().Str("outcome", outcome).Msg("training finished")
}
