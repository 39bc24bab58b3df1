package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/errkind"
)

// SessionDependencies defines the interface for session reads and recomputes.
type SessionDependencies interface {
	Session(ctx context.Context, sessionID string) (model.Session, error)
	Recompute(ctx context.Context, sessionID string) (model.Session, error)
}

// SessionsHandler serves /sessions/{id} and /sessions/{id}/recompute.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleSession dispatches on the path suffix and method.
func (h *SessionsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session"

	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(action, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", errkind.NewKind(op, ErrBadPath))
		return
	}

	var (
		sess model.Session
		err  error
	)
	switch {
	case action == "" && r.Method == http.MethodGet:
		sess, err = h.deps.Session(r.Context(), id)
	case action == "recompute" && r.Method == http.MethodPost:
		sess, err = h.deps.Recompute(r.Context(), id)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
