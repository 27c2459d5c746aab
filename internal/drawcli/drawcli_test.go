package drawcli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/whattoeat/internal/adapters/http/api"
	service "github.com/okian/whattoeat/internal/app"
	"github.com/okian/whattoeat/internal/domain/catalog"
	"github.com/okian/whattoeat/internal/domain/stats"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const menu = `
vendors:
  - name: A
    group: G1
    dishes: [a1, a2]
  - name: B
    group: G1
  - name: C
    group: G2
    dishes: [c1]
`

func shortSpin(autoStop bool) []service.Option {
	return []service.Option{
		service.WithSpinSchedule(3, time.Millisecond, 0),
		service.WithAutoStop(autoStop),
		service.WithLogger(logger.Nop()),
	}
}

func newLocal(t *testing.T, autoStop bool) *Local {
	t.Helper()
	c, err := catalog.Parse(context.Background(), []byte(menu))
	if err != nil {
		t.Fatal(err)
	}
	svc := service.New(append(shortSpin(autoStop), service.WithCatalog(c), service.WithSeed(3))...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return &Local{svc: svc}
}

func TestFollow(t *testing.T) {
	Convey("Given a scripted event stream", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		events := make(chan types.SessionEvent, 8)
		var started, stopped int
		start := func(context.Context) error { started++; return nil }
		stop := func(context.Context) error {
			stopped++
			events <- types.SessionEvent{Type: types.EventState, Session: &types.Session{
				Status: "showing", Result: &types.Draw{Vendor: "manual"},
			}}
			return nil
		}
		var ticks []int
		onTick := func(tk types.Tick) { ticks = append(ticks, tk.Step) }

		events <- types.SessionEvent{Type: types.EventState, Session: &types.Session{Status: "idle"}}
		events <- types.SessionEvent{Type: types.EventState, Session: &types.Session{Status: "spinning"}}
		events <- types.SessionEvent{Type: types.EventTick, Tick: &types.Tick{Step: 1, Steps: 2}}
		events <- types.SessionEvent{Type: types.EventTick, Tick: &types.Tick{Step: 2, Steps: 2}}

		Convey("When the server settles on its own", func() {
			events <- types.SessionEvent{Type: types.EventState, Session: &types.Session{
				Status: "showing", Result: &types.Draw{Vendor: "auto"},
			}}
			d, err := follow(ctx, events, start, stop, onTick)

			Convey("Then the server's result is returned without a stop", func() {
				So(err, ShouldBeNil)
				So(d.Vendor, ShouldEqual, "auto")
				So(started, ShouldEqual, 1)
				So(stopped, ShouldEqual, 0)
				So(ticks, ShouldResemble, []int{1, 2})
			})
		})

		Convey("When the server waits for a stop", func() {
			d, err := follow(ctx, events, start, stop, onTick)

			Convey("Then the spin is stopped after the last tick", func() {
				So(err, ShouldBeNil)
				So(d.Vendor, ShouldEqual, "manual")
				So(stopped, ShouldEqual, 1)
			})
		})

		Convey("When the stream closes early", func() {
			close(events)
			_, err := follow(ctx, events, start, stop, onTick)
			So(err, ShouldEqual, ErrSpinAborted)
		})
	})
}

func TestLocal(t *testing.T) {
	_ = logger.Init()

	Convey("Given an in-process backend", t, func() {
		ctx := context.Background()

		Convey("When drawing", func() {
			l := newLocal(t, true)
			defer l.Close()
			vendors, err := l.Vendors(ctx)
			So(err, ShouldBeNil)
			So(len(vendors), ShouldEqual, 3)

			d, err := l.Draw(ctx)
			So(err, ShouldBeNil)
			So([]string{"A", "B", "C"}, ShouldContain, d.Vendor)
		})

		Convey("When spinning with auto-stop", func() {
			l := newLocal(t, true)
			defer l.Close()
			var last types.Tick
			d, err := l.Spin(ctx, func(tk types.Tick) { last = tk })

			Convey("Then the result is the last tick", func() {
				So(err, ShouldBeNil)
				So(last.Step, ShouldEqual, 3)
				So(d.Vendor, ShouldEqual, last.Vendor)
				So(d.Dish, ShouldEqual, last.Dish)
			})
		})

		Convey("When spinning without auto-stop", func() {
			l := newLocal(t, false)
			defer l.Close()
			d, err := l.Spin(ctx, nil)

			Convey("Then the CLI stops the spin itself", func() {
				So(err, ShouldBeNil)
				So(d.Vendor, ShouldNotBeEmpty)
				So(d.SessionID, ShouldNotBeEmpty)
			})
		})
	})
}

func TestRemote(t *testing.T) {
	_ = logger.Init()

	Convey("Given a server", t, func() {
		ctx := context.Background()
		l := newLocal(t, true)
		defer l.Close()
		mux := http.NewServeMux()
		api.NewServer(l.svc, l.svc, 100).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		r := NewRemote(srv.URL+"/", time.Second)
		defer r.Close()

		Convey("Then health, catalog and draws work over HTTP", func() {
			So(r.Health(ctx), ShouldBeNil)
			vendors, err := r.Vendors(ctx)
			So(err, ShouldBeNil)
			So(len(vendors), ShouldEqual, 3)
			So(vendors[0].Dishes, ShouldResemble, []catalog.Dish{{Name: "a1"}, {Name: "a2"}})

			d, err := r.Draw(ctx)
			So(err, ShouldBeNil)
			So(d.Source, ShouldEqual, "api")
		})

		Convey("Then a spin streams ticks over the websocket", func() {
			var ticks int
			d, err := r.Spin(ctx, func(types.Tick) { ticks++ })
			So(err, ShouldBeNil)
			So(ticks, ShouldEqual, 3)
			So(d.Vendor, ShouldNotBeEmpty)
		})

		Convey("Then error responses are decoded", func() {
			err := r.do(ctx, http.MethodGet, "/sessions/missing", nil, nil)
			apiErr, ok := err.(*APIError)
			So(ok, ShouldBeTrue)
			So(apiErr.Status, ShouldEqual, http.StatusNotFound)
			So(apiErr.Code, ShouldEqual, "not_found")
		})

		Convey("Then the stream URL follows the base scheme", func() {
			u, err := NewRemote("https://eat.example.org/api", time.Second).streamURL("s1")
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "wss://eat.example.org/api/sessions/s1/stream")
		})
	})
}

func TestRun(t *testing.T) {
	_ = logger.Init(logger.WithOutput(&bytes.Buffer{}))

	Convey("Given a local run with stats", t, func() {
		var out bytes.Buffer
		err := Run(context.Background(), &Config{
			Local:   true,
			Seed:    9,
			Draws:   60,
			Workers: 4,
			Stats:   true,
			Out:     &out,
		})

		Convey("Then the report covers every draw", func() {
			So(err, ShouldBeNil)
			So(out.String(), ShouldStartWith, "VENDOR")
			So(out.String(), ShouldContainSubstring, "total=60 ")
		})
	})
}

func TestWriteReport(t *testing.T) {
	Convey("Given a small tally", t, func() {
		tl := stats.NewTally("G/A", "G/B")
		tl.AddN("G/A", 3)
		tl.AddN("G/B", 1)
		var out bytes.Buffer
		So(writeReport(&out, tl.Report()), ShouldBeNil)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		So(len(lines), ShouldEqual, 4)
		So(lines[1], ShouldStartWith, "G/A")
		So(lines[1], ShouldContainSubstring, "75.00%")
		So(lines[3], ShouldEqual, "total=4 chi_square=1.000 max_deviation=0.2500")
	})
}
