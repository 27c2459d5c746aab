package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/whattoeat/internal/adapters/http/api"
	service "github.com/okian/whattoeat/internal/app"
	"github.com/okian/whattoeat/internal/domain/catalog"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newMux(t *testing.T, opts ...service.Option) *http.ServeMux {
	t.Helper()
	c, err := catalog.New([]catalog.Vendor{
		{Name: "A", Group: "G1"},
		{Name: "B", Group: "G1", Dishes: []catalog.Dish{{Name: "x"}, {Name: "y"}}},
		{Name: "C", Group: "G2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	base := []service.Option{
		service.WithCatalog(c),
		service.WithSeed(3),
		service.WithSpinSchedule(3, time.Millisecond, 0),
		service.WithMaxSessions(2),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	api.NewServer(svc, svc, 50).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(t)

		Convey("Then health serves prometheus metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "whattoeat_picker_")
		})

		Convey("Then health answers JSON probes", func() {
			w := do(mux, http.MethodGet, "/healthz", "", "Accept", "application/json")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]string](w)["status"], ShouldEqual, "ok")
		})

		Convey("Then stats reports the catalog", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[map[string]any](w)
			So(stats["vendors"], ShouldEqual, float64(3))
			So(stats["started"], ShouldEqual, true)
			So(stats, ShouldContainKey, "uptimeSeconds")
		})

		Convey("Then the dashboard is served", func() {
			w := do(mux, http.MethodGet, "/dashboard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "/history/vendors")
		})

		Convey("Then unknown paths are 404", func() {
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are 404", func() {
			So(do(mux, http.MethodGet, "/draw", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/catalog", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestCatalogEndpoints(t *testing.T) {
	Convey("Given the catalog endpoints", t, func() {
		mux := newMux(t)

		Convey("GET /catalog lists every vendor in order", func() {
			w := do(mux, http.MethodGet, "/catalog", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			vendors := decode[[]map[string]any](w)
			So(len(vendors), ShouldEqual, 3)
			So(vendors[1]["name"], ShouldEqual, "B")
			So(vendors[1]["dishes"], ShouldResemble, []any{"x", "y"})
		})

		Convey("GET /catalog?group filters", func() {
			w := do(mux, http.MethodGet, "/catalog?group=G2", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(len(decode[[]map[string]any](w)), ShouldEqual, 1)

			So(do(mux, http.MethodGet, "/catalog?group=nope", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("GET /catalog/groups lists groups in first-seen order", func() {
			w := do(mux, http.MethodGet, "/catalog/groups", "")
			So(decode[[]string](w), ShouldResemble, []string{"G1", "G2"})
		})
	})
}

func TestDrawAndHistory(t *testing.T) {
	Convey("Given a fresh server", t, func() {
		mux := newMux(t)

		Convey("When drawing", func() {
			w := do(mux, http.MethodPost, "/draw", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			d := decode[types.Draw](w)
			So([]string{"A", "B", "C"}, ShouldContain, d.Vendor)
			So(d.Label, ShouldStartWith, d.Vendor)

			Convey("Then history eventually returns it", func() {
				var got []types.Draw
				deadline := time.Now().Add(time.Second)
				for time.Now().Before(deadline) {
					got = decode[[]types.Draw](do(mux, http.MethodGet, "/history?limit=5", ""))
					if len(got) == 1 {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(len(got), ShouldEqual, 1)
				So(got[0].ID, ShouldEqual, d.ID)

				counts := decode[[]types.VendorCount](do(mux, http.MethodGet, "/history/vendors", ""))
				So(counts, ShouldResemble, []types.VendorCount{{Group: d.Group, Vendor: d.Vendor, Count: 1}})
			})
		})

		Convey("History validates limit", func() {
			So(do(mux, http.MethodGet, "/history?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/history?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			w := do(mux, http.MethodGet, "/history?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[map[string]string](w)["code"], ShouldEqual, "limit_exceeded")
			So(do(mux, http.MethodGet, "/history", "").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestSessionEndpoints(t *testing.T) {
	Convey("Given a created session", t, func() {
		mux := newMux(t, service.WithAutoStop(false))
		w := do(mux, http.MethodPost, "/sessions", "")
		So(w.Code, ShouldEqual, http.StatusCreated)
		sess := decode[types.Session](w)
		So(sess.Status, ShouldEqual, "idle")
		So(w.Header().Get("Location"), ShouldEqual, "/sessions/"+sess.ID)
		path := "/sessions/" + sess.ID

		Convey("Then it can be read back", func() {
			got := decode[types.Session](do(mux, http.MethodGet, path, ""))
			So(got.ID, ShouldEqual, sess.ID)
		})

		Convey("Then start, stop and reset walk the cycle", func() {
			w := do(mux, http.MethodPost, path+"/commands", `{"command":"start"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode[map[string]any](w)
			So(body["status"], ShouldEqual, "spinning")
			So(body["changed"], ShouldEqual, true)

			body = decode[map[string]any](do(mux, http.MethodPost, path+"/commands", `{"command":"stop"}`))
			So(body["status"], ShouldEqual, "showing")
			So(body["result"], ShouldNotBeNil)

			body = decode[map[string]any](do(mux, http.MethodPost, path+"/commands", `{"command":"reset"}`))
			So(body["status"], ShouldEqual, "idle")
			So(body["result"], ShouldBeNil)
		})

		Convey("Then commands that do not apply report no change", func() {
			body := decode[map[string]any](do(mux, http.MethodPost, path+"/commands", `{"command":"reset"}`))
			So(body["changed"], ShouldEqual, false)
			So(body["status"], ShouldEqual, "idle")
		})

		Convey("Then a retried request id is applied once", func() {
			do(mux, http.MethodPost, path+"/commands", `{"command":"start","request_id":"r1"}`)
			do(mux, http.MethodPost, path+"/commands", `{"command":"stop"}`)
			body := decode[map[string]any](do(mux, http.MethodPost, path+"/commands", `{"command":"start"}`, "Idempotency-Key", "r1"))
			So(body["changed"], ShouldEqual, false)
			So(body["status"], ShouldEqual, "showing")
		})

		Convey("Then bad commands are 400", func() {
			So(do(mux, http.MethodPost, path+"/commands", `{"command":"spin"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, path+"/commands", `{}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, path+"/commands", `not json`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then unknown sessions are 404", func() {
			So(do(mux, http.MethodGet, "/sessions/nope", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/sessions/nope/commands", `{"command":"start"}`).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then the registry limit is 429", func() {
			So(do(mux, http.MethodPost, "/sessions", "").Code, ShouldEqual, http.StatusCreated)
			So(do(mux, http.MethodPost, "/sessions", "").Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("Then delete removes it", func() {
			So(do(mux, http.MethodDelete, path, "").Code, ShouldEqual, http.StatusNoContent)
			So(do(mux, http.MethodGet, path, "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestThemeEndpoints(t *testing.T) {
	Convey("Given the theme endpoints", t, func() {
		mux := newMux(t)

		Convey("A new client gets a cookie and the platform preference", func() {
			w := do(mux, http.MethodGet, "/theme", "", "Sec-CH-Prefers-Color-Scheme", `"dark"`)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode[map[string]string](w)
			So(body["theme"], ShouldEqual, "dark")
			So(body["client_id"], ShouldNotBeEmpty)
			So(w.Header().Get("Set-Cookie"), ShouldContainSubstring, "client_id="+body["client_id"])
		})

		Convey("A stored theme wins over the platform preference", func() {
			w := do(mux, http.MethodPut, "/theme", `{"theme":"light"}`, "X-Client-ID", "c1")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode[map[string]string](do(mux, http.MethodGet, "/theme", "", "X-Client-ID", "c1", "Sec-CH-Prefers-Color-Scheme", "dark"))
			So(body["theme"], ShouldEqual, "light")
		})

		Convey("Toggle flips and persists", func() {
			body := decode[map[string]string](do(mux, http.MethodPost, "/theme/toggle", "", "X-Client-ID", "c2"))
			So(body["theme"], ShouldEqual, "dark")
			body = decode[map[string]string](do(mux, http.MethodPost, "/theme/toggle", "", "X-Client-ID", "c2"))
			So(body["theme"], ShouldEqual, "light")
		})

		Convey("Unknown themes are 400", func() {
			So(do(mux, http.MethodPut, "/theme", `{"theme":"sepia"}`, "X-Client-ID", "c3").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestSessionStream(t *testing.T) {
	Convey("Given a session served over a real listener", t, func() {
		mux := newMux(t)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/sessions", "application/json", nil)
		So(err, ShouldBeNil)
		var sess types.Session
		So(json.NewDecoder(resp.Body).Decode(&sess), ShouldBeNil)
		resp.Body.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sess.ID + "/stream"

		Convey("When connecting and sending start over the socket", func() {
			ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer ws.Close()

			var first types.SessionEvent
			So(ws.ReadJSON(&first), ShouldBeNil)
			So(first.Type, ShouldEqual, types.EventState)
			So(first.Session.Status, ShouldEqual, "idle")

			So(ws.WriteJSON(map[string]string{"command": "start"}), ShouldBeNil)

			Convey("Then ticks stream until the result is shown", func() {
				_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
				ticks := 0
				var final *types.Session
				for final == nil {
					var ev types.SessionEvent
					if err := ws.ReadJSON(&ev); err != nil {
						break
					}
					if ev.Type == types.EventTick {
						ticks++
					}
					if ev.Type == types.EventState && ev.Session.Status == "showing" {
						final = ev.Session
					}
				}
				So(ticks, ShouldEqual, 3)
				So(final, ShouldNotBeNil)
				So(final.Result, ShouldNotBeNil)
			})
		})

		Convey("When the session does not exist", func() {
			_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/sessions/nope/stream", nil)
			So(err, ShouldNotBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}
