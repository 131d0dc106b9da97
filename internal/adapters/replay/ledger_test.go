package replay_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/adapters/replay"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func sample(driverID string, tsMS int64) model.Sample {
	return model.Sample{
		DriverID: driverID,
		Fields: map[string]any{
			model.FieldTimestampMS: float64(tsMS),
			model.FieldSpeed:       42.0,
		},
	}
}

func TestStartRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given a ledger with a fixed clock", t, func() {
		now := time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)
		l := replay.NewLedger(
			replay.WithDir(t.TempDir()),
			replay.WithClock(func() time.Time { return now }),
		)

		Convey("When starting an unnamed run", func() {
			runID, err := l.StartRun(ctx, "", nil, false)

			Convey("Then the id is timestamp-only", func() {
				So(err, ShouldBeNil)
				So(runID, ShouldEqual, "run_20240309T143005Z")
			})

			Convey("Then the run is current", func() {
				current, err := l.CurrentRunID(ctx)
				So(err, ShouldBeNil)
				So(current, ShouldEqual, runID)
			})

			Convey("Then the config carries creation metadata", func() {
				cfg, err := l.CurrentConfig(ctx)
				So(err, ShouldBeNil)
				meta, ok := cfg["_meta"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(meta["run_id"], ShouldEqual, runID)
			})
		})

		Convey("When starting a named run", func() {
			runID, err := l.StartRun(ctx, "heat-3", map[string]any{"laps": 20}, false)

			Convey("Then the name is sanitized into the id", func() {
				So(err, ShouldBeNil)
				So(runID, ShouldEqual, "heat-3_20240309T143005Z")
			})
		})

		Convey("When the caller keeps its config map around", func() {
			callerCfg := map[string]any{"laps": 20}
			_, err := l.StartRun(ctx, "heat-3", callerCfg, false)
			So(err, ShouldBeNil)

			Convey("Then the caller's map is left untouched", func() {
				So(callerCfg, ShouldNotContainKey, "_meta")
			})

			Convey("Then mutating it later does not reach the record", func() {
				callerCfg["laps"] = 99
				cfg, err := l.CurrentConfig(ctx)
				So(err, ShouldBeNil)
				So(cfg["laps"], ShouldEqual, 20)
			})

			Convey("Then mutating a returned config does not either", func() {
				cfg, err := l.CurrentConfig(ctx)
				So(err, ShouldBeNil)
				cfg["laps"] = 99
				delete(cfg, "_meta")

				again, err := l.CurrentConfig(ctx)
				So(err, ShouldBeNil)
				So(again["laps"], ShouldEqual, 20)
				So(again, ShouldContainKey, "_meta")
			})
		})

		Convey("When a run is already active", func() {
			first, err := l.StartRun(ctx, "", nil, false)
			So(err, ShouldBeNil)

			Convey("And starting without force", func() {
				_, err := l.StartRun(ctx, "second", nil, false)

				Convey("Then the conflict sentinel surfaces and the run survives", func() {
					So(err, ShouldWrap, replay.ErrRunActive)
					current, err := l.CurrentRunID(ctx)
					So(err, ShouldBeNil)
					So(current, ShouldEqual, first)
				})
			})

			Convey("And starting with force", func() {
				now = now.Add(time.Minute)
				second, err := l.StartRun(ctx, "second", nil, true)

				Convey("Then the new run replaces the old one", func() {
					So(err, ShouldBeNil)
					So(second, ShouldNotEqual, first)
					current, err := l.CurrentRunID(ctx)
					So(err, ShouldBeNil)
					So(current, ShouldEqual, second)
				})
			})
		})
	})
}

func TestAppendAndFlush(t *testing.T) {
	ctx := context.Background()

	Convey("Given a ledger flushing every 2 telemetry appends", t, func() {
		dir := t.TempDir()
		l := replay.NewLedger(
			replay.WithDir(dir),
			replay.WithFlushEvery(2),
		)

		Convey("When appending without an active run", func() {
			err := l.Append(ctx, replay.KindTelemetry, sample("car_01", 1000))

			Convey("Then the no-active-run sentinel surfaces", func() {
				So(err, ShouldWrap, replay.ErrNoActiveRun)
			})
		})

		Convey("When a run is active", func() {
			runID, err := l.StartRun(ctx, "", nil, false)
			So(err, ShouldBeNil)
			replayPath := filepath.Join(dir, runID+".json")

			// Drop the skeleton so flush timing is observable.
			So(os.Remove(replayPath), ShouldBeNil)

			Convey("And appending one telemetry sample", func() {
				So(l.Append(ctx, replay.KindTelemetry, sample("car_01", 1000)), ShouldBeNil)

				Convey("Then no durable flush happened yet", func() {
					_, err := os.Stat(replayPath)
					So(os.IsNotExist(err), ShouldBeTrue)
				})
			})

			Convey("And appending a second telemetry sample", func() {
				So(l.Append(ctx, replay.KindTelemetry, sample("car_01", 1000)), ShouldBeNil)
				So(l.Append(ctx, replay.KindTelemetry, sample("car_02", 1001)), ShouldBeNil)

				Convey("Then the record was flushed with both entries", func() {
					b, err := os.ReadFile(replayPath)
					So(err, ShouldBeNil)

					var rec map[string]any
					So(json.Unmarshal(b, &rec), ShouldBeNil)
					telemetry, ok := rec["telemetry"].([]any)
					So(ok, ShouldBeTrue)
					So(len(telemetry), ShouldEqual, 2)
				})
			})

			Convey("And appending intents and events", func() {
				So(l.Append(ctx, replay.KindIntent, model.Prediction{DriverID: "car_01", Intent: "push"}), ShouldBeNil)
				So(l.Append(ctx, replay.KindEvent, model.Event{Kind: "leaderboard_reset"}), ShouldBeNil)

				Convey("Then those appends never block on disk", func() {
					_, err := os.Stat(replayPath)
					So(os.IsNotExist(err), ShouldBeTrue)
				})

				Convey("Then an explicit flush persists all sequences", func() {
					So(l.Flush(ctx), ShouldBeNil)

					b, err := os.ReadFile(replayPath)
					So(err, ShouldBeNil)

					var rec map[string]any
					So(json.Unmarshal(b, &rec), ShouldBeNil)
					So(len(rec["intent_predictions"].([]any)), ShouldEqual, 1)
					So(len(rec["events"].([]any)), ShouldEqual, 1)
				})
			})

			Convey("And appending a mistyped entry", func() {
				err := l.Append(ctx, replay.KindTelemetry, "not a sample")
				So(err, ShouldWrap, replay.ErrBadEntry)

				err = l.Append(ctx, "bogus", sample("car_01", 1000))
				So(err, ShouldWrap, replay.ErrBadEntry)
			})
		})
	})
}

func TestConfigAndListRuns(t *testing.T) {
	ctx := context.Background()

	Convey("Given a ledger with two completed runs", t, func() {
		dir := t.TempDir()
		now := time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)
		l := replay.NewLedger(
			replay.WithDir(dir),
			replay.WithClock(func() time.Time { return now }),
		)

		first, err := l.StartRun(ctx, "", map[string]any{"laps": 10}, false)
		So(err, ShouldBeNil)

		now = now.Add(time.Hour)
		second, err := l.StartRun(ctx, "", map[string]any{"laps": 30}, true)
		So(err, ShouldBeNil)

		Convey("When reading the current run's config", func() {
			cfg, err := l.Config(ctx, second)

			Convey("Then it is served from memory", func() {
				So(err, ShouldBeNil)
				So(cfg["laps"], ShouldEqual, 30)
			})
		})

		Convey("When reading an older run's config", func() {
			cfg, err := l.Config(ctx, first)

			Convey("Then it is read back from disk", func() {
				So(err, ShouldBeNil)
				So(cfg["laps"], ShouldEqual, 10)
			})
		})

		Convey("When reading an unknown run", func() {
			_, err := l.Config(ctx, "no_such_run")

			Convey("Then the not-found sentinel surfaces", func() {
				So(err, ShouldWrap, replay.ErrNotFound)
			})
		})

		Convey("When listing runs", func() {
			runs, err := l.ListRuns(ctx)

			Convey("Then both appear, newest first", func() {
				So(err, ShouldBeNil)
				So(runs, ShouldResemble, []string{second, first})
			})
		})
	})

	Convey("Given a ledger over a directory that does not exist yet", t, func() {
		l := replay.NewLedger(replay.WithDir(filepath.Join(t.TempDir(), "nested", "replays")))

		Convey("When listing runs", func() {
			runs, err := l.ListRuns(ctx)

			Convey("Then the list is empty rather than an error", func() {
				So(err, ShouldBeNil)
				So(runs, ShouldBeEmpty)
			})
		})
	})
}
