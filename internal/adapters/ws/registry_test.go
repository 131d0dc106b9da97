package ws_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/adapters/ws"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/rank"
	"github.com/okian/pitwall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty registry", t, func() {
		r := ws.NewRegistry()

		Convey("When broadcasting with no subscribers", func() {
			err := r.DeliverToAll(ctx, ws.LeaderboardMessage(nil))

			Convey("Then the broadcast is a clean no-op", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When registering handles", func() {
			a := r.NewHandle()
			b := r.NewHandle()

			Convey("Then each gets a distinct identity", func() {
				So(a.ID(), ShouldNotEqual, b.ID())
				So(r.Len(), ShouldEqual, 2)
			})

			Convey("And removing one", func() {
				r.Remove(a)

				Convey("Then only the other remains", func() {
					So(r.Len(), ShouldEqual, 1)
				})

				Convey("Then removing again is a no-op", func() {
					r.Remove(a)
					So(r.Len(), ShouldEqual, 1)
				})
			})
		})
	})

	Convey("Given a registry with two subscribers", t, func() {
		r := ws.NewRegistry()
		a := r.NewHandle()
		b := r.NewHandle()

		Convey("When broadcasting a message", func() {
			err := r.DeliverToAll(ctx, ws.ErrorMessage("test"))

			Convey("Then both outbound queues receive the same payload", func() {
				So(err, ShouldBeNil)
				So(string(<-a.Outbound()), ShouldEqual, string(<-b.Outbound()))
			})
		})

		Convey("When delivering to one handle", func() {
			err := r.DeliverToOne(ctx, a.ID(), ws.ErrorMessage("private"))

			Convey("Then only that handle receives it", func() {
				So(err, ShouldBeNil)
				So(len(a.Outbound()), ShouldEqual, 1)
				So(len(b.Outbound()), ShouldEqual, 0)
			})
		})

		Convey("When delivering to an unknown handle", func() {
			err := r.DeliverToOne(ctx, "no-such-handle", ws.ErrorMessage("lost"))

			Convey("Then the closed-handle sentinel surfaces", func() {
				So(err, ShouldWrap, ws.ErrHandleClosed)
			})
		})
	})

	Convey("Given a subscriber that never drains its queue", t, func() {
		r := ws.NewRegistry(
			ws.WithSendBuffer(1),
			ws.WithDeliveryTimeout(20*time.Millisecond),
		)
		slow := r.NewHandle()
		healthy := r.NewHandle()

		// Fill the slow subscriber's buffer.
		So(r.DeliverToOne(ctx, slow.ID(), ws.ErrorMessage("fill")), ShouldBeNil)

		Convey("When the next broadcast times out on it", func() {
			err := r.DeliverToAll(ctx, ws.ErrorMessage("overflow"))

			Convey("Then the slow subscriber is pruned and the rest survive", func() {
				So(err, ShouldBeNil)
				So(r.Len(), ShouldEqual, 1)
				So(r.DeliverToOne(ctx, slow.ID(), ws.ErrorMessage("gone")), ShouldWrap, ws.ErrHandleClosed)
				// The healthy subscriber drains the broadcast from its
				// one-slot buffer before the next delivery.
				<-healthy.Outbound()
				So(r.DeliverToOne(ctx, healthy.ID(), ws.ErrorMessage("alive")), ShouldBeNil)
			})
		})
	})

	Convey("Given a subscriber that disconnects before a broadcast", t, func() {
		r := ws.NewRegistry()
		gone := r.NewHandle()
		stay := r.NewHandle()
		r.Remove(gone)

		Convey("When broadcasting", func() {
			err := r.DeliverToAll(ctx, ws.ErrorMessage("update"))

			Convey("Then delivery reaches the remaining subscriber cleanly", func() {
				So(err, ShouldBeNil)
				So(len(stay.Outbound()), ShouldEqual, 1)
			})
		})
	})
}

func TestMessages(t *testing.T) {
	Convey("Given outbound message constructors", t, func() {
		Convey("When building a leaderboard message", func() {
			entries := []rank.Entry{{
				Rank:     1,
				Snapshot: model.Snapshot{DriverID: "car_01", Fields: map[string]any{"position": 1.0}},
			}}
			b, err := json.Marshal(ws.LeaderboardMessage(entries))
			So(err, ShouldBeNil)

			var out map[string]any
			So(json.Unmarshal(b, &out), ShouldBeNil)

			Convey("Then the wire type and rows are present", func() {
				So(out["type"], ShouldEqual, ws.TypeLeaderboardUpdate)
				rows, ok := out["leaderboard"].([]any)
				So(ok, ShouldBeTrue)
				So(len(rows), ShouldEqual, 1)
			})
		})

		Convey("When building a driver update message", func() {
			snap := model.Snapshot{DriverID: "car_02", Fields: map[string]any{"speed_mps": 50.0}}
			b, err := json.Marshal(ws.DriverUpdateMessage(snap))
			So(err, ShouldBeNil)

			var out map[string]any
			So(json.Unmarshal(b, &out), ShouldBeNil)

			Convey("Then the snapshot is flattened under the wire type", func() {
				So(out["type"], ShouldEqual, ws.TypeDriverUpdate)
			})
		})

		Convey("When building an intent message", func() {
			p := model.Prediction{DriverID: "car_03", Intent: "push", Confidence: 0.8}
			b, err := json.Marshal(ws.IntentMessage(p))
			So(err, ShouldBeNil)

			var out map[string]any
			So(json.Unmarshal(b, &out), ShouldBeNil)

			Convey("Then the prediction fields ride alongside the wire type", func() {
				So(out["type"], ShouldEqual, ws.TypeIntent)
				So(out["driver_id"], ShouldEqual, "car_03")
				So(out["intent"], ShouldEqual, "push")
			})
		})

		Convey("When building a run started message", func() {
			b, err := json.Marshal(ws.RunStartedMessage("run_x", map[string]any{"laps": 10}))
			So(err, ShouldBeNil)

			var out map[string]any
			So(json.Unmarshal(b, &out), ShouldBeNil)

			Convey("Then the run id and config are present", func() {
				So(out["type"], ShouldEqual, ws.TypeRunStarted)
				So(out["run_id"], ShouldEqual, "run_x")
			})
		})
	})
}
