package knowledge

import (
	"context"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/models"
)

// SuccessRecord carries the fields of a finished request the feedback
// path needs. It is a value copy so capture never holds workflow state.
type SuccessRecord struct {
	UserQuery    string
	GeneratedSQL string
	Tables       []string
	Success      bool
}

// FeedbackRecorder writes successful generations back into the store so
// future retrievals can reuse them.
type FeedbackRecorder struct {
	store  *Store
	logger *zap.Logger
}

func NewFeedbackRecorder(store *Store, logger *zap.Logger) *FeedbackRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackRecorder{store: store, logger: logger}
}

// CaptureSuccess stores the record as a new example and persists the
// index. Feedback is strictly best-effort: any failure is logged and
// reported as false, never propagated to the originating request.
func (r *FeedbackRecorder) CaptureSuccess(ctx context.Context, rec SuccessRecord) bool {
	if !rec.Success || rec.UserQuery == "" || rec.GeneratedSQL == "" {
		return false
	}

	ex := models.Example{
		NaturalQuery: rec.UserQuery,
		SQL:          rec.GeneratedSQL,
		Tables:       rec.Tables,
		Complexity:   EstimateComplexity(rec.GeneratedSQL),
		Tags:         []string{"feedback"},
	}

	ids, err := r.store.Add(ctx, []models.Example{ex})
	if err != nil {
		r.logger.Warn("feedback capture failed", zap.Error(err))
		return false
	}
	if len(ids) == 0 {
		// Already stored, nothing to persist.
		return false
	}

	if err := r.store.Persist(); err != nil {
		r.logger.Warn("feedback persist failed", zap.Error(err))
		return false
	}

	r.logger.Info("captured successful generation",
		zap.String("id", ids[0]),
		zap.String("complexity", string(ex.Complexity)))
	return true
}
