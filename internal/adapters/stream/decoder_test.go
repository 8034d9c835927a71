package stream_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/okian/auditdeck/internal/adapters/stream"
	"github.com/smartystreets/goconvey/convey"
)

func TestDecoder(t *testing.T) {
	convey.Convey("Given an event stream body", t, func() {
		body := ": keep-alive\n" +
			"retry: 1500\n\n" +
			"id: 7\n" +
			"data: {\"type\":\"initial_data\",\n" +
			"data: \"data\":{}}\r\n" +
			"\r\n" +
			"event: ping\n" +
			"data:no-space\n\n" +
			"data: cut off"
		dec := stream.NewDecoder(strings.NewReader(body))

		convey.Convey("Then frames are dispatched on blank lines", func() {
			f, err := dec.Next()
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.ID, convey.ShouldEqual, "7")
			convey.So(f.Event, convey.ShouldEqual, "message")
			convey.So(string(f.Data), convey.ShouldEqual, "{\"type\":\"initial_data\",\n\"data\":{}}")
			convey.So(dec.Retry(), convey.ShouldEqual, 1500*time.Millisecond)

			f, err = dec.Next()
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.Event, convey.ShouldEqual, "ping")
			convey.So(string(f.Data), convey.ShouldEqual, "no-space")
			convey.So(f.ID, convey.ShouldEqual, "7")

			_, err = dec.Next()
			convey.So(errors.Is(err, io.EOF), convey.ShouldBeTrue)
		})
	})
}

func TestBackoff(t *testing.T) {
	convey.Convey("Given a backoff without jitter", t, func() {
		b := stream.Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2, MaxAttempts: 3}

		convey.Convey("Then delays grow and are capped", func() {
			convey.So(b.Delay(1, 0), convey.ShouldEqual, 100*time.Millisecond)
			convey.So(b.Delay(2, 0), convey.ShouldEqual, 200*time.Millisecond)
			convey.So(b.Delay(4, 0), convey.ShouldEqual, 800*time.Millisecond)
			convey.So(b.Delay(10, 0), convey.ShouldEqual, time.Second)
		})

		convey.Convey("Then a server hint replaces the base", func() {
			convey.So(b.Delay(1, 300*time.Millisecond), convey.ShouldEqual, 300*time.Millisecond)
		})

		convey.Convey("Then attempts are bounded", func() {
			convey.So(b.Exhausted(3), convey.ShouldBeFalse)
			convey.So(b.Exhausted(4), convey.ShouldBeTrue)
			convey.So(stream.Backoff{}.Exhausted(1000), convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given a backoff with no cap and no attempt limit", t, func() {
		b := stream.Backoff{Initial: time.Second, Multiplier: 10}

		convey.Convey("Then late delays fall back to the default cap", func() {
			convey.So(b.Delay(5_000, 0), convey.ShouldEqual, stream.DefaultBackoff().Max)
			convey.So(b.Delay(5_000, 0), convey.ShouldBeGreaterThan, 0)
		})
	})

	convey.Convey("Given a zero backoff", t, func() {
		convey.Convey("Then the first delay uses the default base", func() {
			convey.So(stream.Backoff{}.Delay(1, 0), convey.ShouldEqual, stream.DefaultBackoff().Initial)
		})
	})

	convey.Convey("Given a backoff with jitter", t, func() {
		b := stream.Backoff{Initial: time.Second, Max: time.Minute, Multiplier: 2, Jitter: 0.1}

		convey.Convey("Then delays stay within the jitter band", func() {
			for i := 0; i < 100; i++ {
				d := b.Delay(1, 0)
				convey.So(int64(d), convey.ShouldBeBetweenOrEqual, int64(900*time.Millisecond), int64(1100*time.Millisecond))
			}
		})
	})
}
