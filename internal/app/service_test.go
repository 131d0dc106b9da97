package service_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/adapters/replay"
	service "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newStartedService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()

	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(1000),
		service.WithReplayDir(t.TempDir()),
		service.WithEmitInterval(50 * time.Millisecond),
		service.WithMinSamples(3),
	}
	svc := service.New(append(base, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

// waitFor polls until cond holds or the deadline passes, absorbing the async
// pipeline's processing delay.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func telemetry(driverID string, tsMS int64, speed float64) map[string]any {
	return map[string]any{
		model.FieldDriverID:    driverID,
		model.FieldTimestampMS: float64(tsMS),
		model.FieldSpeed:       speed,
		model.FieldThrottle:    80.0,
		model.FieldPosition:    1.0,
	}
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc := newStartedService(t)
		defer svc.Stop()

		Convey("When the payload has no driver identity", func() {
			_, err := svc.Ingest(ctx, map[string]any{"speed_mps": 50.0}, "")

			Convey("Then the validation sentinel surfaces", func() {
				So(err, ShouldWrap, service.ErrValidation)
			})
		})

		Convey("When the driver identity is blank", func() {
			_, err := svc.Ingest(ctx, map[string]any{model.FieldDriverID: "   "}, "")

			Convey("Then the sample is rejected", func() {
				So(err, ShouldWrap, service.ErrValidation)
			})
		})

		Convey("When the payload is valid", func() {
			duplicate, err := svc.Ingest(ctx, telemetry("car_01", 1000, 50), "")

			Convey("Then it is accepted as new", func() {
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeFalse)
			})
		})

		Convey("When a sample id is retried", func() {
			fields := telemetry("car_01", 1000, 50)
			fields["sample_id"] = "s-1"

			_, err := svc.Ingest(ctx, fields, "")
			So(err, ShouldBeNil)

			duplicate, err := svc.Ingest(ctx, fields, "")

			Convey("Then the retry is suppressed", func() {
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeTrue)
			})
		})
	})
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service with a single worker", t, func() {
		// One worker keeps per-driver merge order deterministic for the
		// convergence assertions below.
		svc := newStartedService(t, service.WithWorkerCount(1))
		defer svc.Stop()

		Convey("When samples flow through the pipeline", func() {
			for i := 0; i < 10; i++ {
				fields := telemetry("car_01", int64(1000+i), 50+float64(i))
				_, err := svc.Ingest(ctx, fields, "")
				So(err, ShouldBeNil)
			}

			Convey("Then the driver snapshot converges to the merged state", func() {
				ok := waitFor(func() bool {
					snap, err := svc.Driver(ctx, "car_01")
					if err != nil {
						return false
					}
					v, _ := snap.Float(model.FieldSpeed)
					return v == 59
				})
				So(ok, ShouldBeTrue)
			})

			Convey("Then the driver appears on the leaderboard", func() {
				ok := waitFor(func() bool {
					entries := svc.Leaderboard(ctx)
					return len(entries) == 1 && entries[0].Snapshot.DriverID == "car_01"
				})
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When several drivers race", func() {
			for i := 0; i < 5; i++ {
				for d := 1; d <= 3; d++ {
					fields := telemetry("car_0"+strconv.Itoa(d), int64(1000+i), 50)
					fields[model.FieldPosition] = float64(d)
					_, err := svc.Ingest(ctx, fields, "")
					So(err, ShouldBeNil)
				}
			}

			Convey("Then the board orders them by position", func() {
				ok := waitFor(func() bool {
					entries := svc.Leaderboard(ctx)
					return len(entries) == 3 &&
						entries[0].Snapshot.DriverID == "car_01" &&
						entries[2].Snapshot.DriverID == "car_03"
				})
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the drivers are reset", func() {
			_, err := svc.Ingest(ctx, telemetry("car_01", 1000, 50), "")
			So(err, ShouldBeNil)
			So(waitFor(func() bool { return len(svc.Leaderboard(ctx)) == 1 }), ShouldBeTrue)

			So(svc.ResetDrivers(ctx), ShouldBeNil)

			Convey("Then all state is gone", func() {
				So(svc.Leaderboard(ctx), ShouldBeEmpty)
				_, err := svc.Driver(ctx, "car_01")
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc := newStartedService(t)
		defer svc.Stop()

		Convey("Then an initial run is already active", func() {
			runID, cfg, err := svc.CurrentRun(ctx)
			So(err, ShouldBeNil)
			So(runID, ShouldNotBeEmpty)
			So(cfg, ShouldNotBeNil)
		})

		Convey("When starting a run without force", func() {
			_, err := svc.StartRun(ctx, "race", nil, false)

			Convey("Then the active run wins", func() {
				So(err, ShouldWrap, replay.ErrRunActive)
			})
		})

		Convey("When starting a run with force", func() {
			runID, err := svc.StartRun(ctx, "race-day", map[string]any{"laps": 30}, true)

			Convey("Then the new run becomes current", func() {
				So(err, ShouldBeNil)
				So(runID, ShouldStartWith, "race-day_")

				current, cfg, err := svc.CurrentRun(ctx)
				So(err, ShouldBeNil)
				So(current, ShouldEqual, runID)
				So(cfg["laps"], ShouldEqual, 30)
			})

			Convey("Then its config is retrievable by id", func() {
				So(err, ShouldBeNil)
				cfg, err := svc.RunConfig(ctx, runID)
				So(err, ShouldBeNil)
				So(cfg["laps"], ShouldEqual, 30)
			})

			Convey("Then it shows up in the run list", func() {
				So(err, ShouldBeNil)
				runs, err := svc.ListRuns(ctx)
				So(err, ShouldBeNil)
				So(runs, ShouldContain, runID)
			})
		})

		Convey("When asking for an unknown run's config", func() {
			_, err := svc.RunConfig(ctx, "never_happened")

			Convey("Then the not-found sentinel surfaces", func() {
				So(err, ShouldWrap, replay.ErrNotFound)
			})
		})
	})
}

func TestStats(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newStartedService(t)
		defer svc.Stop()

		Convey("When reading stats", func() {
			stats := svc.GetStats()

			Convey("Then the lifecycle and sizing are reported", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["workerCount"], ShouldEqual, 2)
				So(stats["queueSize"], ShouldEqual, 1000)
				So(stats["drivers"], ShouldEqual, 0)
				So(stats["subscribers"], ShouldEqual, 0)
				So(stats["runId"], ShouldNotBeEmpty)
			})
		})
	})
}

func TestStopIdempotent(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newStartedService(t)

		Convey("When stopping twice", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then stats report the service as stopped", func() {
				So(svc.GetStats()["started"], ShouldBeFalse)
			})
		})
	})
}
