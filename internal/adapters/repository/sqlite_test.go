package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/whattoeat/internal/domain/model"
	"github.com/okian/whattoeat/internal/domain/selector"
	. "github.com/smartystreets/goconvey/convey"
)

func openMemory(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func draw(id, vendor, dish string, at time.Time) model.DrawEvent {
	return model.DrawEvent{
		ID:     id,
		Source: model.SourceAPI,
		Result: selector.Result{Group: "一食堂", Vendor: vendor, Dish: dish},
		At:     at,
	}
}

func TestOpen(t *testing.T) {
	Convey("Given an empty path", t, func() {
		_, err := Open(context.Background(), " ")
		So(errors.Is(err, ErrOpen), ShouldBeTrue)
	})

	Convey("Given a file path", t, func() {
		path := t.TempDir() + "/eat.db"
		s, err := Open(context.Background(), path, WithBusyTimeout(time.Second), WithMaxOpenConns(2))
		So(err, ShouldBeNil)
		So(s.SetTheme(context.Background(), "c1", "dark"), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then data survives a reopen", func() {
			s2, err := Open(context.Background(), path)
			So(err, ShouldBeNil)
			defer s2.Close()
			theme, ok, err := s2.Theme(context.Background(), "c1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(theme, ShouldEqual, "dark")
		})
	})
}

func TestThemes(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		s := openMemory(t)
		ctx := context.Background()

		Convey("Unknown clients have no theme", func() {
			_, ok, err := s.Theme(ctx, "nobody")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("SetTheme upserts", func() {
			So(s.SetTheme(ctx, "c1", "light"), ShouldBeNil)
			So(s.SetTheme(ctx, "c1", "dark"), ShouldBeNil)
			theme, ok, err := s.Theme(ctx, "c1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(theme, ShouldEqual, "dark")
		})

		Convey("Bad input is rejected", func() {
			So(errors.Is(s.SetTheme(ctx, "", "dark"), ErrInvalidInput), ShouldBeTrue)
			So(s.SetTheme(ctx, "c2", "sepia"), ShouldNotBeNil)
		})
	})
}

func TestDraws(t *testing.T) {
	Convey("Given a store with a few draws", t, func() {
		s := openMemory(t)
		ctx := context.Background()
		base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

		So(s.InsertDraw(ctx, draw("d1", "瑞幸", "", base)), ShouldBeNil)
		So(s.InsertDraw(ctx, draw("d2", "鸡排", "香酥鸡排", base.Add(time.Minute))), ShouldBeNil)
		So(s.InsertDraw(ctx, draw("d3", "瑞幸", "", base.Add(2*time.Minute))), ShouldBeNil)

		Convey("Then RecentDraws is newest first and carries labels", func() {
			got, err := s.RecentDraws(ctx, 2)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].ID, ShouldEqual, "d3")
			So(got[1].ID, ShouldEqual, "d2")
			So(got[1].Label, ShouldEqual, "鸡排\n香酥鸡排")
			So(got[1].CreatedAt.Equal(base.Add(time.Minute)), ShouldBeTrue)
		})

		Convey("Then duplicate ids are ignored", func() {
			So(s.InsertDraw(ctx, draw("d1", "other", "", base)), ShouldBeNil)
			n, err := s.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
		})

		Convey("Then VendorCounts tallies most drawn first", func() {
			counts, err := s.VendorCounts(ctx)
			So(err, ShouldBeNil)
			So(len(counts), ShouldEqual, 2)
			So(counts[0].Vendor, ShouldEqual, "瑞幸")
			So(counts[0].Count, ShouldEqual, 2)
			So(counts[1].Count, ShouldEqual, 1)
		})

		Convey("Then invalid input is rejected", func() {
			_, err := s.RecentDraws(ctx, 0)
			So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
			So(errors.Is(s.InsertDraw(ctx, draw("", "x", "", base)), ErrInvalidInput), ShouldBeTrue)
			So(errors.Is(s.InsertDraw(ctx, draw("d9", "", "", base)), ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestClosedStore(t *testing.T) {
	Convey("Given a closed store", t, func() {
		s := openMemory(t)
		So(s.Close(), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then every operation reports ErrClosed", func() {
			ctx := context.Background()
			_, _, err := s.Theme(ctx, "c")
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
			So(errors.Is(s.SetTheme(ctx, "c", "dark"), ErrClosed), ShouldBeTrue)
			_, err = s.Count(ctx)
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
		})
	})
}

func BenchmarkInsertDraw(b *testing.B) {
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	now := time.Now()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.InsertDraw(ctx, draw(fmt.Sprintf("d%d", i), "v", "", now)); err != nil {
			b.Fatal(err)
		}
	}
}
