package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/errkind"
)

// ScoreDependencies defines the interface for consistency scoring.
type ScoreDependencies interface {
	ConsistencyScore(ctx context.Context, userID string) (model.ConsistencyScoreResult, error)
}

// ScoreHandler handles consistency score requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleGetConsistency handles GET /users/{userId}/consistency requests.
func (h *ScoreHandler) HandleGetConsistency(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_consistency"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/users/")
	userID, ok := strings.CutSuffix(path, "/consistency")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", errkind.NewKind(op, ErrBadPath))
		return
	}

	res, err := h.deps.ConsistencyScore(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
