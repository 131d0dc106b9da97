package broadcast_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/adapters/broadcast"
	"github.com/okian/pitwall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler with a short interval", t, func() {
		var emits int64
		emit := func(context.Context) error {
			atomic.AddInt64(&emits, 1)
			return nil
		}
		s := broadcast.NewScheduler(emit, broadcast.WithInterval(50*time.Millisecond))

		Convey("When notified many times within one interval", func() {
			for i := 0; i < 100; i++ {
				s.Notify()
			}

			Convey("Then exactly one emission fires", func() {
				time.Sleep(150 * time.Millisecond)
				So(atomic.LoadInt64(&emits), ShouldEqual, 1)
				So(s.Pending(), ShouldBeFalse)
			})
		})

		Convey("When notified again after an emission", func() {
			s.Notify()
			time.Sleep(100 * time.Millisecond)
			s.Notify()
			time.Sleep(100 * time.Millisecond)

			Convey("Then each burst produces its own emission", func() {
				So(atomic.LoadInt64(&emits), ShouldEqual, 2)
			})
		})

		Convey("When never notified", func() {
			time.Sleep(100 * time.Millisecond)

			Convey("Then nothing fires", func() {
				So(atomic.LoadInt64(&emits), ShouldEqual, 0)
				So(s.Pending(), ShouldBeFalse)
			})
		})

		Convey("When notified while an emission is pending", func() {
			s.Notify()
			So(s.Pending(), ShouldBeTrue)
			s.Notify()

			Convey("Then the extra notification coalesces", func() {
				time.Sleep(150 * time.Millisecond)
				So(atomic.LoadInt64(&emits), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an emit callback that fails", t, func() {
		var calls int64
		s := broadcast.NewScheduler(func(context.Context) error {
			atomic.AddInt64(&calls, 1)
			return errors.New("delivery down")
		}, broadcast.WithInterval(20*time.Millisecond))

		Convey("When notifications keep coming", func() {
			s.Notify()
			time.Sleep(60 * time.Millisecond)
			s.Notify()
			time.Sleep(60 * time.Millisecond)

			Convey("Then the scheduler keeps scheduling despite errors", func() {
				So(atomic.LoadInt64(&calls), ShouldEqual, 2)
				So(s.Pending(), ShouldBeFalse)
			})
		})
	})

	Convey("Given an emit callback that panics", t, func() {
		var calls int64
		s := broadcast.NewScheduler(func(context.Context) error {
			atomic.AddInt64(&calls, 1)
			panic("emit exploded")
		}, broadcast.WithInterval(20*time.Millisecond))

		Convey("When a notification fires it", func() {
			s.Notify()
			time.Sleep(60 * time.Millisecond)

			Convey("Then the scheduler recovers and accepts new work", func() {
				So(s.Pending(), ShouldBeFalse)
				s.Notify()
				time.Sleep(60 * time.Millisecond)
				So(atomic.LoadInt64(&calls), ShouldEqual, 2)
			})
		})
	})
}
