package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/model"
)

var plus2 = time.FixedZone("", 2*3600)

func sampleEvent(id, session string, at time.Time) model.SessionEvent {
	return model.SessionEvent{
		EventID:       id,
		SessionID:     session,
		UserID:        "user-1",
		Type:          model.EventMetric,
		EventTime:     at,
		ReceivedAt:    time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC),
		Payload:       model.Payload{"calories": 50.0},
		SchemaVersion: model.SchemaVersion,
	}
}

func sampleSession(id, user string, end *time.Time) model.Session {
	start := time.Date(2026, 1, 20, 21, 0, 0, 0, plus2)
	return model.Session{
		SessionID:   id,
		UserID:      user,
		StartTime:   &start,
		EndTime:     end,
		DurationSec: 60,
		Calories:    50,
		EventCount:  3,
		LastEventAt: end,
		UpdatedAt:   time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC),
		Version:     1,
	}
}

func ptr(t time.Time) *time.Time { return &t }

// storeContract runs the shared collaborator contract against s.
func storeContract(s repository.Store) {
	ctx := context.Background()
	base := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)

	Convey("When an event is created twice", func() {
		ev := sampleEvent("e1", "s1", base)
		So(s.CreateEvent(ctx, ev), ShouldBeNil)

		changed := ev
		changed.Payload = model.Payload{"calories": 999.0}
		err := s.CreateEvent(ctx, changed)

		Convey("Then the second write reports a conflict and does not overwrite", func() {
			So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)

			got, err := s.ListSessionEvents(ctx, "s1")
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 1)
			So(got[0].Payload["calories"], ShouldEqual, 50.0)
		})
	})

	Convey("When events arrive out of order", func() {
		So(s.CreateEvent(ctx, sampleEvent("e3", "s1", base.Add(2*time.Second))), ShouldBeNil)
		So(s.CreateEvent(ctx, sampleEvent("e2", "s1", base)), ShouldBeNil)
		So(s.CreateEvent(ctx, sampleEvent("e1", "s1", base)), ShouldBeNil)
		So(s.CreateEvent(ctx, sampleEvent("x1", "other", base)), ShouldBeNil)

		got, err := s.ListSessionEvents(ctx, "s1")

		Convey("Then they list by event time with id ties", func() {
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 3)
			So(got[0].EventID, ShouldEqual, "e1")
			So(got[1].EventID, ShouldEqual, "e2")
			So(got[2].EventID, ShouldEqual, "e3")
			So(got[0].SchemaVersion, ShouldEqual, model.SchemaVersion)
			So(got[0].Type, ShouldEqual, model.EventMetric)
		})
	})

	Convey("When an event carries a non-UTC offset", func() {
		at := time.Date(2026, 1, 20, 23, 30, 0, 0, plus2)
		So(s.CreateEvent(ctx, sampleEvent("e1", "s1", at)), ShouldBeNil)
		got, err := s.ListSessionEvents(ctx, "s1")

		Convey("Then the offset survives the round trip", func() {
			So(err, ShouldBeNil)
			So(got[0].EventTime.Equal(at), ShouldBeTrue)
			_, off := got[0].EventTime.Zone()
			So(off, ShouldEqual, 2*3600)
			So(got[0].EventTime.Format("2006-01-02"), ShouldEqual, "2026-01-20")
		})
	})

	Convey("When a session does not exist", func() {
		_, err := s.GetSession(ctx, "missing")
		So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
	})

	Convey("When a session is merged twice", func() {
		end := time.Date(2026, 1, 20, 23, 30, 0, 0, plus2)
		first := sampleSession("s1", "user-1", &end)
		So(s.MergeSession(ctx, first), ShouldBeNil)

		second := first
		second.Version = 2
		second.EventCount = 4
		second.Calories = 75
		So(s.MergeSession(ctx, second), ShouldBeNil)

		got, err := s.GetSession(ctx, "s1")

		Convey("Then the latest computed fields win", func() {
			So(err, ShouldBeNil)
			So(got.Version, ShouldEqual, 2)
			So(got.EventCount, ShouldEqual, 4)
			So(got.Calories, ShouldEqual, 75)
			So(got.DurationSec, ShouldEqual, 60)
			So(got.EndTime, ShouldNotBeNil)
			So(got.EndTime.Equal(end), ShouldBeTrue)
			_, off := got.EndTime.Zone()
			So(off, ShouldEqual, 2*3600)
			So(got.StartTime.Equal(*first.StartTime), ShouldBeTrue)
		})
	})

	Convey("When a partial session is merged", func() {
		partial := sampleSession("s1", "user-1", nil)
		partial.LastEventAt = nil
		So(s.MergeSession(ctx, partial), ShouldBeNil)

		got, err := s.GetSession(ctx, "s1")
		So(err, ShouldBeNil)
		So(got.EndTime, ShouldBeNil)
		So(got.LastEventAt, ShouldBeNil)
		So(got.StartTime, ShouldNotBeNil)
	})

	Convey("When listing sessions ended since a cutoff", func() {
		now := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
		for i, end := range []*time.Time{
			ptr(now.AddDate(0, 0, -40)),
			ptr(now.AddDate(0, 0, -1)),
			ptr(now.AddDate(0, 0, -3)),
			nil,
		} {
			So(s.MergeSession(ctx, sampleSession(fmt.Sprintf("s%d", i), "user-1", end)), ShouldBeNil)
		}
		So(s.MergeSession(ctx, sampleSession("other", "user-2", ptr(now))), ShouldBeNil)

		got, err := s.ListSessionsEndedSince(ctx, "user-1", now.AddDate(0, 0, -28))

		Convey("Then only the user's recent ended sessions return, oldest end first", func() {
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].SessionID, ShouldEqual, "s2")
			So(got[1].SessionID, ShouldEqual, "s1")
		})
	})
}

func TestMemStore(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		s := repository.NewMemStore(context.Background())
		So(s.Driver(), ShouldEqual, repository.DriverMemory)

		storeContract(s)

		Convey("When a caller mutates a returned payload", func() {
			ctx := context.Background()
			So(s.CreateEvent(ctx, sampleEvent("e1", "s1", time.Now())), ShouldBeNil)
			got, _ := s.ListSessionEvents(ctx, "s1")
			got[0].Payload["calories"] = 1.0

			again, _ := s.ListSessionEvents(ctx, "s1")
			So(again[0].Payload["calories"], ShouldEqual, 50.0)
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			So(s.CreateEvent(ctx, sampleEvent("e1", "s1", time.Now())), ShouldNotBeNil)
		})

		Reset(func() {
			So(s.Close(), ShouldBeNil)
		})
	})
}

func TestGormStoreSQLite(t *testing.T) {
	Convey("Given a sqlite backed gorm store", t, func() {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		s, err := repository.Open(context.Background(), repository.DriverSQLite, dsn)
		So(err, ShouldBeNil)
		So(s.Driver(), ShouldEqual, repository.DriverSQLite)

		storeContract(s)

		Reset(func() {
			So(s.Close(), ShouldBeNil)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given store drivers", t, func() {
		Convey("When the driver is unknown", func() {
			_, err := repository.Open(context.Background(), "mongo", "")
			So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeTrue)
		})

		Convey("When a sql driver has no dsn", func() {
			_, err := repository.Open(context.Background(), repository.DriverPostgres, " ")
			So(errors.Is(err, repository.ErrMissingDSN), ShouldBeTrue)
		})

		Convey("When the driver is empty", func() {
			s, err := repository.Open(context.Background(), "", "")
			So(err, ShouldBeNil)
			So(s.Driver(), ShouldEqual, repository.DriverMemory)
			So(s.Close(), ShouldBeNil)
		})
	})
}
