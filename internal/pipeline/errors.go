package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/queue"
)

type Kind string

const (
	// KindValidation means the job itself is unusable; retrying cannot help.
	KindValidation Kind = "validation"
	// KindExternalService covers ffmpeg, transcription and storage failures, timeouts included.
	KindExternalService Kind = "external_service"
	KindPersistence     Kind = "persistence"
	KindInfrastructure  Kind = "infrastructure"
)

type StageError struct {
	Stage models.Stage
	Op    string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Stage, e.Op, e.Kind)
	if errors.Is(e.Err, context.DeadlineExceeded) {
		msg += " (timed out)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is lets the queue recognise validation failures as not worth retrying.
func (e *StageError) Is(target error) bool {
	return target == queue.ErrSkipRetry && e.Kind == KindValidation
}

func newStageError(kind Kind, stage models.Stage, op string, err error) error {
	return &StageError{Stage: stage, Op: op, Kind: kind, Err: err}
}

func validationError(stage models.Stage, op string, err error) error {
	return newStageError(KindValidation, stage, op, err)
}

func externalError(stage models.Stage, op string, err error) error {
	return newStageError(KindExternalService, stage, op, err)
}

func infrastructureError(stage models.Stage, op string, err error) error {
	return newStageError(KindInfrastructure, stage, op, err)
}

// KindOf returns the kind of the first StageError in err's chain.
// Untagged errors are treated as external service failures.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindExternalService
}
