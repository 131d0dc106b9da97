package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/pitwall/internal/adapters/ws"
	"github.com/okian/pitwall/internal/domain/rank"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDeps records handler calls for assertions.
type fakeDeps struct {
	mu      sync.Mutex
	ingests []map[string]any
	resets  int
}

func (f *fakeDeps) Ingest(_ context.Context, fields map[string]any, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingests = append(f.ingests, fields)
	return false, nil
}

func (f *fakeDeps) Leaderboard(context.Context) []rank.Entry { return []rank.Entry{} }

func (f *fakeDeps) ResetDrivers(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeDeps) ingestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ingests)
}

func (f *fakeDeps) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	So(err, ShouldBeNil)

	var out map[string]any
	So(json.Unmarshal(data, &out), ShouldBeNil)
	return out
}

func TestServeWS(t *testing.T) {
	Convey("Given a live subscriber endpoint", t, func() {
		deps := &fakeDeps{}
		reg := ws.NewRegistry()
		handler := ws.NewHandler(reg, deps)

		srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
		defer srv.Close()
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

		Convey("When a viewer connects", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer func() { _ = conn.Close() }()

			Convey("Then it immediately receives the board snapshot", func() {
				msg := readMessage(t, conn)
				So(msg["type"], ShouldEqual, ws.TypeLeaderboardUpdate)
			})

			Convey("And it is registered until disconnect", func() {
				readMessage(t, conn)
				So(reg.Len(), ShouldEqual, 1)

				So(conn.Close(), ShouldBeNil)

				deadline := time.Now().Add(2 * time.Second)
				for reg.Len() != 0 && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(reg.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a viewer pushes telemetry over the socket", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer func() { _ = conn.Close() }()
			readMessage(t, conn)

			payload := `{"type":"telemetry:update","data":{"driver_id":"car_01","speed_mps":50}}`
			So(conn.WriteMessage(websocket.TextMessage, []byte(payload)), ShouldBeNil)

			Convey("Then the sample reaches the service layer", func() {
				deadline := time.Now().Add(2 * time.Second)
				for deps.ingestCount() == 0 && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(deps.ingestCount(), ShouldEqual, 1)
			})
		})

		Convey("When a viewer requests a fresh board", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer func() { _ = conn.Close() }()
			readMessage(t, conn)

			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"leaderboard:subscribe"}`)), ShouldBeNil)

			Convey("Then another snapshot arrives on demand", func() {
				msg := readMessage(t, conn)
				So(msg["type"], ShouldEqual, ws.TypeLeaderboardUpdate)
			})
		})

		Convey("When a viewer requests a reset", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer func() { _ = conn.Close() }()
			readMessage(t, conn)

			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"leaderboard:reset"}`)), ShouldBeNil)

			Convey("Then the reset reaches the service layer", func() {
				deadline := time.Now().Add(2 * time.Second)
				for deps.resetCount() == 0 && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(deps.resetCount(), ShouldEqual, 1)
			})
		})

		Convey("When a viewer sends garbage", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer func() { _ = conn.Close() }()
			readMessage(t, conn)

			So(conn.WriteMessage(websocket.TextMessage, []byte("not json")), ShouldBeNil)

			Convey("Then an error frame comes back and the connection survives", func() {
				msg := readMessage(t, conn)
				So(msg["type"], ShouldEqual, ws.TypeError)
				So(reg.Len(), ShouldEqual, 1)
			})
		})
	})
}
