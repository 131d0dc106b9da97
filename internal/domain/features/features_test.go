package features_test

import (
	"context"
	"testing"

	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sample(driverID string, speed, throttle, brake, tyre, lapProgress float64) model.Sample {
	return model.Sample{
		DriverID: driverID,
		Fields: map[string]any{
			model.FieldSpeed:       speed,
			model.FieldThrottle:    throttle,
			model.FieldBrake:       brake,
			model.FieldTyreTemp:    tyre,
			model.FieldLapProgress: lapProgress,
		},
	}
}

func TestWindow(t *testing.T) {
	Convey("Given a rolling window of capacity 40", t, func() {
		w := features.NewWindow(40)

		Convey("When pushing 45 samples", func() {
			for i := 0; i < 45; i++ {
				w.Push(sample("car_01", float64(i), 0, 0, 0, 0))
			}

			Convey("Then only the newest 40 remain", func() {
				So(w.Len(), ShouldEqual, 40)
			})

			Convey("Then features reflect the surviving samples", func() {
				f := w.Features()
				// Speeds 5..44 remain, mean is 24.5.
				So(f.SpeedMean, ShouldAlmostEqual, 24.5, 1e-9)
				So(f.DeltaSpeed, ShouldAlmostEqual, 44-24.5, 1e-9)
				So(f.Samples, ShouldEqual, 40)
			})
		})

		Convey("When the window is empty", func() {
			Convey("Then features are the cold-start zero value", func() {
				So(w.Features().Empty(), ShouldBeTrue)
			})
		})

		Convey("When checking readiness", func() {
			for i := 0; i < 4; i++ {
				w.Push(sample("car_01", 10, 0, 0, 0, 0))
			}
			So(w.Ready(5), ShouldBeFalse)

			w.Push(sample("car_01", 10, 0, 0, 0, 0))
			So(w.Ready(5), ShouldBeTrue)
		})
	})

	Convey("Given deterministic channel values", t, func() {
		w := features.NewWindow(10)
		speeds := []float64{10, 20, 30}
		for i, s := range speeds {
			w.Push(sample("car_01", s, 60, 12, 90, float64(i)*0.1))
		}

		Convey("When computing features", func() {
			f := w.Features()

			Convey("Then means are arithmetic over the window", func() {
				So(f.SpeedMean, ShouldAlmostEqual, 20.0, 1e-9)
				So(f.ThrottleMean, ShouldAlmostEqual, 60.0, 1e-9)
				So(f.BrakeMean, ShouldAlmostEqual, 12.0, 1e-9)
				So(f.TyreTempMean, ShouldAlmostEqual, 90.0, 1e-9)
			})

			Convey("Then speed std is the population deviation", func() {
				// Variance of {10,20,30} around 20 is 200/3.
				So(f.SpeedStd, ShouldAlmostEqual, 8.16496580927726, 1e-9)
			})

			Convey("Then delta speed is last minus mean", func() {
				So(f.DeltaSpeed, ShouldAlmostEqual, 10.0, 1e-9)
			})

			Convey("Then lap progress slope is per-sample advance", func() {
				So(f.LapProgSlope, ShouldAlmostEqual, 0.1, 1e-9)
			})
		})
	})
}

func TestExtractor(t *testing.T) {
	ctx := context.Background()

	Convey("Given an extractor with a min-sample gate of 5", t, func() {
		e := features.NewExtractor(
			features.WithCapacity(40),
			features.WithMinSamples(5),
		)

		Convey("When a driver has fewer samples than the gate", func() {
			for i := 0; i < 4; i++ {
				e.Push(ctx, sample("car_01", 50, 80, 5, 85, float64(i)*0.01))
			}

			Convey("Then features are empty", func() {
				So(e.Features(ctx, "car_01").Empty(), ShouldBeTrue)
			})
		})

		Convey("When a driver crosses the gate", func() {
			for i := 0; i < 5; i++ {
				e.Push(ctx, sample("car_01", 50, 80, 5, 85, float64(i)*0.01))
			}

			Convey("Then features are computed", func() {
				f := e.Features(ctx, "car_01")
				So(f.Empty(), ShouldBeFalse)
				So(f.Samples, ShouldEqual, 5)
			})
		})

		Convey("When drivers share the extractor", func() {
			for i := 0; i < 10; i++ {
				e.Push(ctx, sample("car_01", 60, 90, 2, 88, 0))
				e.Push(ctx, sample("car_02", 20, 20, 1, 80, 0))
			}

			Convey("Then windows stay isolated per driver", func() {
				So(e.Features(ctx, "car_01").SpeedMean, ShouldAlmostEqual, 60.0, 1e-9)
				So(e.Features(ctx, "car_02").SpeedMean, ShouldAlmostEqual, 20.0, 1e-9)
			})
		})

		Convey("When asking for an unknown driver", func() {
			Convey("Then features are empty rather than an error", func() {
				So(e.Features(ctx, "nobody").Empty(), ShouldBeTrue)
			})
		})

		Convey("When resetting", func() {
			for i := 0; i < 10; i++ {
				e.Push(ctx, sample("car_01", 60, 90, 2, 88, 0))
			}
			e.Reset(ctx)

			Convey("Then all windows are dropped", func() {
				So(e.Features(ctx, "car_01").Empty(), ShouldBeTrue)
			})
		})
	})
}
