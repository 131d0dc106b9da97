package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/pitwall/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When recording a fresh sample id", func() {
			seen := d.SeenAndRecord(ctx, "sample-1")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When recording the same id twice", func() {
			d.SeenAndRecord(ctx, "sample-1")
			seen := d.SeenAndRecord(ctx, "sample-1")

			Convey("Then the retry is suppressed", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording after a failed enqueue", func() {
			d.SeenAndRecord(ctx, "sample-1")
			d.Unrecord(ctx, "sample-1")

			Convey("Then the id can be recorded again", func() {
				So(d.SeenAndRecord(ctx, "sample-1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a deduper bounded to 3 ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When recording past the bound", func() {
			for i := 0; i < 5; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("sample-%d", i))
			}

			Convey("Then the size never exceeds the bound", func() {
				So(d.Size(), ShouldEqual, 3)
			})

			Convey("Then the oldest ids were evicted, newest retained", func() {
				So(d.SeenAndRecord(ctx, "sample-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "sample-0"), ShouldBeFalse)
			})
		})
	})

	Convey("Given concurrent producers", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When the same id races from many goroutines", func() {
			const goroutines = 32
			var wg sync.WaitGroup
			fresh := make(chan bool, goroutines)

			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					fresh <- !d.SeenAndRecord(ctx, "contested")
				}()
			}
			wg.Wait()
			close(fresh)

			Convey("Then exactly one recording wins", func() {
				wins := 0
				for f := range fresh {
					if f {
						wins++
					}
				}
				So(wins, ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})
}
