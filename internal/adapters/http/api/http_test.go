package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/errkind"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDependencies struct {
	ingested  []model.RawEvent
	ingestErr error
	duplicate bool

	sessions     map[string]model.Session
	recomputed   []string
	sessionErr   error
	score        model.ConsistencyScoreResult
	scoreErr     error
	scoredUserID string
}

func (m *mockDependencies) Ingest(_ context.Context, raw model.RawEvent) (model.IngestResult, error) {
	if m.ingestErr != nil {
		return model.IngestResult{}, m.ingestErr
	}
	m.ingested = append(m.ingested, raw)
	return model.IngestResult{Status: "ok", SessionID: "sid-" + raw.ClientSessionID, EventID: "eid", Duplicate: m.duplicate}, nil
}

func (m *mockDependencies) Session(_ context.Context, id string) (model.Session, error) {
	if m.sessionErr != nil {
		return model.Session{}, m.sessionErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, errkind.NewKind("mock.session", model.ErrSessionNotFound)
	}
	return s, nil
}

func (m *mockDependencies) Recompute(ctx context.Context, id string) (model.Session, error) {
	m.recomputed = append(m.recomputed, id)
	return m.Session(ctx, id)
}

func (m *mockDependencies) ConsistencyScore(_ context.Context, userID string) (model.ConsistencyScoreResult, error) {
	m.scoredUserID = userID
	return m.score, m.scoreErr
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func decodeError(w *httptest.ResponseRecorder) errorResponse {
	var res errorResponse
	So(json.NewDecoder(w.Body).Decode(&res), ShouldBeNil)
	return res
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := &mockDependencies{sessions: map[string]model.Session{"s1": {SessionID: "s1"}}}
		server := NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}})
		mux := http.NewServeMux()
		server.Register(context.Background(), mux)

		serve := func(method, target, body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, target, strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		Convey("Then health serves the metrics registry", func() {
			w := serve("GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And stats endpoint should be accessible", func() {
			w := serve("GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("And events endpoint should be accessible", func() {
			w := serve("POST", "/events", `{"userId":"u","clientSessionId":"c","type":"start","timestamp":"2026-01-20T10:00:00Z"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And sessions endpoint should be accessible", func() {
			So(serve("GET", "/sessions/s1", "").Code, ShouldEqual, http.StatusOK)
			So(serve("POST", "/sessions/s1/recompute", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("And consistency endpoint should be accessible", func() {
			So(serve("GET", "/users/u1/consistency", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("And unknown paths are not found", func() {
			So(serve("GET", "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestEventsHandler_HandlePostEvent(t *testing.T) {
	Convey("Given an events handler", t, func() {
		deps := &mockDependencies{}
		handler := NewEventsHandler(deps)

		post := func(body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest("POST", "/events", strings.NewReader(body))
			w := httptest.NewRecorder()
			handler.HandlePostEvent(w, req)
			return w
		}

		Convey("When handling a valid POST request", func() {
			w := post(`{
				"userId": "user-1",
				"clientSessionId": "sess-1",
				"type": "metric",
				"timestamp": "2026-01-20T10:00:05Z",
				"payload": {"calories": 50, "hr": 130}
			}`)

			Convey("Then it returns the ingest result", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res model.IngestResult
				So(json.NewDecoder(w.Body).Decode(&res), ShouldBeNil)
				So(res.Status, ShouldEqual, "ok")
				So(res.SessionID, ShouldEqual, "sid-sess-1")
				So(res.Duplicate, ShouldBeFalse)
			})

			Convey("And the raw event reaches the service untouched", func() {
				So(deps.ingested, ShouldHaveLength, 1)
				So(deps.ingested[0].Type, ShouldEqual, model.EventMetric)
				So(deps.ingested[0].Payload["calories"], ShouldEqual, 50.0)
			})
		})

		Convey("When the service absorbs a duplicate", func() {
			deps.duplicate = true
			w := post(`{"userId":"u","clientSessionId":"c","type":"end","timestamp":"2026-01-20T10:30:00Z"}`)

			Convey("Then the response still succeeds and flags it", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When handling an invalid JSON request", func() {
			w := post(`{invalid json`)

			Convey("Then it should return bad request status", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Code, ShouldEqual, "bad_request")
				So(deps.ingested, ShouldBeEmpty)
			})
		})

		Convey("When the service rejects the event", func() {
			deps.ingestErr = model.NewValidationError("normalize", model.ErrMissingIdentifier)
			w := post(`{"clientSessionId":"c","type":"start","timestamp":"2026-01-20T10:00:00Z"}`)

			Convey("Then the message names the reason", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				res := decodeError(w)
				So(res.Code, ShouldEqual, "bad_request")
				So(res.Message, ShouldContainSubstring, "missing identifier")
			})
		})

		Convey("When the store fails", func() {
			deps.ingestErr = model.NewStorageError("record", errors.New("connection refused"))
			w := post(`{"userId":"u","clientSessionId":"c","type":"start","timestamp":"2026-01-20T10:00:00Z"}`)

			Convey("Then it should return internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w).Code, ShouldEqual, "internal_error")
			})
		})

		Convey("When the body is too large", func() {
			w := post(`{"userId":"` + strings.Repeat("x", maxEventBytes) + `"}`)

			Convey("Then it should return request entity too large", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})

		Convey("When handling a non-POST request", func() {
			req := httptest.NewRequest("GET", "/events", nil)
			w := httptest.NewRecorder()
			handler.HandlePostEvent(w, req)

			Convey("Then it should return not found status", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestSessionsHandler_HandleSession(t *testing.T) {
	Convey("Given a sessions handler", t, func() {
		deps := &mockDependencies{sessions: map[string]model.Session{
			"abc": {SessionID: "abc", UserID: "u", DurationSec: 1800, Calories: 50, EventCount: 3, Version: 2},
		}}
		handler := NewSessionsHandler(deps)

		do := func(method, target string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, target, nil)
			w := httptest.NewRecorder()
			handler.HandleSession(w, req)
			return w
		}

		Convey("When reading a known session", func() {
			w := do("GET", "/sessions/abc")

			Convey("Then the summary is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var sess model.Session
				So(json.NewDecoder(w.Body).Decode(&sess), ShouldBeNil)
				So(sess.DurationSec, ShouldEqual, 1800)
				So(sess.Version, ShouldEqual, 2)
			})
		})

		Convey("When reading an unknown session", func() {
			w := do("GET", "/sessions/missing")

			Convey("Then it should return not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w).Code, ShouldEqual, "not_found")
			})
		})

		Convey("When recomputing", func() {
			w := do("POST", "/sessions/abc/recompute")

			Convey("Then the aggregator is invoked for that id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.recomputed, ShouldResemble, []string{"abc"})
			})
		})

		Convey("When recompute is requested with GET", func() {
			So(do("GET", "/sessions/abc/recompute").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the path is malformed", func() {
			So(do("GET", "/sessions/").Code, ShouldEqual, http.StatusBadRequest)
			So(do("POST", "/sessions/abc/recompute/again").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the store fails", func() {
			deps.sessionErr = model.NewStorageError("get", errors.New("timeout"))
			So(do("GET", "/sessions/abc").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestScoreHandler_HandleGetConsistency(t *testing.T) {
	Convey("Given a score handler", t, func() {
		deps := &mockDependencies{score: model.ConsistencyScoreResult{
			Score:   89,
			Bullets: []string{"You trained 25/28 days", "Longest gap: 1 day", "Average sessions per training day: 1.0"},
			Chart:   []model.ChartPoint{{Date: "2026-01-28", Sessions: 1}},
		}}
		handler := NewScoreHandler(deps)

		get := func(target string) *httptest.ResponseRecorder {
			req := httptest.NewRequest("GET", target, nil)
			w := httptest.NewRecorder()
			handler.HandleGetConsistency(w, req)
			return w
		}

		Convey("When scoring a user", func() {
			w := get("/users/user-1/consistency")

			Convey("Then the result is returned verbatim", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.scoredUserID, ShouldEqual, "user-1")
				var res model.ConsistencyScoreResult
				So(json.NewDecoder(w.Body).Decode(&res), ShouldBeNil)
				So(res, ShouldResemble, deps.score)
			})
		})

		Convey("When the path has no consistency suffix", func() {
			So(get("/users/user-1").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the user segment is empty or nested", func() {
			So(get("/users//consistency").Code, ShouldEqual, http.StatusBadRequest)
			So(get("/users/a/b/consistency").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service rejects the user id", func() {
			deps.scoreErr = model.NewValidationError("score", model.ErrMissingIdentifier)
			So(get("/users/x/consistency").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When handling a non-GET request", func() {
			req := httptest.NewRequest("POST", "/users/u/consistency", nil)
			w := httptest.NewRecorder()
			handler.HandleGetConsistency(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the health handler", t, func() {
		req := httptest.NewRequest("GET", "/healthz", nil)
		w := httptest.NewRecorder()
		NewHealthHandler().HandleHealth(w, req)

		Convey("Then it serves prometheus text", func() {
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
		})
	})

	Convey("Given the stats handler", t, func() {
		handler := NewStatsHandler(&mockStatsProvider{stats: map[string]interface{}{"dedupeEntries": 4}})

		Convey("When handling GET", func() {
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()
			handler.HandleStats(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"dedupeEntries":4`)
		})

		Convey("When handling POST", func() {
			req := httptest.NewRequest("POST", "/stats", nil)
			w := httptest.NewRecorder()
			handler.HandleStats(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given the metrics middleware", t, func() {
		h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}, "test")
		req := httptest.NewRequest("GET", "/x", nil)
		w := httptest.NewRecorder()
		h(w, req)

		Convey("Then the wrapped status passes through", func() {
			So(w.Code, ShouldEqual, http.StatusTeapot)
		})
	})

	Convey("Given status codes", t, func() {
		So(getErrorType(500), ShouldEqual, "server_error")
		So(getErrorType(413), ShouldEqual, "too_large")
		So(getErrorType(404), ShouldEqual, "not_found")
		So(getErrorType(400), ShouldEqual, "client_error")
		So(getErrorType(200), ShouldEqual, "unknown")
		So(getErrorSeverity(502), ShouldEqual, "high")
		So(getErrorSeverity(422), ShouldEqual, "medium")
		So(getErrorSeverity(204), ShouldEqual, "low")
	})
}
