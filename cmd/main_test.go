package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/stride/internal/app"
	"github.com/okian/stride/internal/config"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("STRIDE_ADDR", ":8080")
			_ = os.Setenv("STRIDE_DEDUPE_SIZE", "1000")
			_ = os.Setenv("STRIDE_SCORE_TIMEZONE", "Europe/Berlin")
			defer func() {
				_ = os.Unsetenv("STRIDE_ADDR")
				_ = os.Unsetenv("STRIDE_DEDUPE_SIZE")
				_ = os.Unsetenv("STRIDE_SCORE_TIMEZONE")
			}()

			convey.Convey("Then configuration maps onto service options", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")

				svc, err := newService(cfg, logger.Discard())
				convey.So(err, convey.ShouldBeNil)
				stats := svc.GetStats()
				convey.So(stats["dedupeSize"], convey.ShouldEqual, 1000)
				convey.So(stats["scoreTimezone"], convey.ShouldEqual, "Europe/Berlin")
			})
		})

		convey.Convey("When the service name is configured", func() {
			cfg := config.New(context.Background())
			cfg.ServiceName = "stride-eu"

			convey.Convey("Then metrics are exported under that namespace", func() {
				registry := prometheus.NewRegistry()
				opts := append(metricsOptions(cfg), metrics.WithPrometheusRegistry(registry))
				convey.So(metrics.NewManager(opts...), convey.ShouldNotBeNil)

				families, err := registry.Gather()
				convey.So(err, convey.ShouldBeNil)
				convey.So(families, convey.ShouldNotBeEmpty)
				for _, f := range families {
					convey.So(strings.HasPrefix(f.GetName(), "stride_eu_sessions_"), convey.ShouldBeTrue)
					convey.So(f.GetMetric()[0].GetLabel()[0].GetName(), convey.ShouldEqual, "version")
				}
			})
		})

		convey.Convey("When the configured timezone is unknown", func() {
			cfg := config.New(context.Background())
			cfg.ScoreTimezone = "Mars/Olympus"

			convey.Convey("Then the service is not built", func() {
				_, err := newService(cfg, logger.Discard())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given a started service and the full mux", t, func() {
		ctx := context.Background()
		svc := app.New(app.WithLogger(logger.Discard()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := httptest.NewServer(newMux(ctx, svc))
		defer srv.Close()

		convey.Convey("When an event is posted end to end", func() {
			body := `{"userId":"u1","clientSessionId":"c1","type":"start","timestamp":"2026-01-20T10:00:00Z"}`
			resp, err := http.Post(srv.URL+"/events", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then it is accepted", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When docs and health are requested", func() {
			for _, path := range []string{"/openapi.yaml", "/api-docs", "/healthz", "/stats"} {
				resp, err := http.Get(srv.URL + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it returns once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics updater", func() {
			svc := app.New()

			convey.Convey("Then it returns once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startServiceMetricsUpdater(ctx, svc)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When updating metrics directly", func() {
			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(app.New()) }, convey.ShouldNotPanic)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a valid configuration on a free port", t, func() {
		cfg := config.New(context.Background())
		cfg.Addr = "127.0.0.1:0"

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			convey.Convey("Then run shuts down cleanly", func() {
				convey.So(run(ctx, cfg, logger.Discard()), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given an address that cannot be bound", t, func() {
		cfg := config.New(context.Background())
		cfg.Addr = "256.0.0.1:99999"

		convey.Convey("Then run reports the listener failure", func() {
			err := run(context.Background(), cfg, logger.Discard())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
