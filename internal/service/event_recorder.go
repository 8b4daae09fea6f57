package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

// EventRecorder advances a target through the funnel when its tracking link is used.
type EventRecorder struct {
	Targets repository.TargetRepositoryInterface
	Log     zerolog.Logger
	Now     func() time.Time
}

// Record stamps stage for the target owning token. It returns false for replays,
// which change nothing. Unknown tokens yield a NotFoundError.
func (r *EventRecorder) Record(ctx context.Context, token, stageName string) (bool, error) {
	stage, ok := model.LookupStage(stageName)
	if !ok {
		return false, appErrors.NewValidation("stage", "unknown funnel stage "+stageName)
	}
	if token == "" || len(token) > 64 {
		return false, appErrors.NewNotFound("tracking token", "")
	}

	at := time.Now().UTC()
	if r.Now != nil {
		at = r.Now()
	}

	recorded, err := r.Targets.RecordEvent(ctx, token, stage, at)
	if err != nil {
		return false, err
	}
	if recorded {
		r.Log.Info().Str("stage", stage.Name).Msg("🎣 funnel event recorded")
	} else {
		r.Log.Debug().Str("stage", stage.Name).Msg("duplicate funnel event ignored")
	}
	return recorded, nil
}
