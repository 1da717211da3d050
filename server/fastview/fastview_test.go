package fastview

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	. "github.com/smartystreets/goconvey/convey"
)

// echoView publishes one ele-update per view-model.
type echoView struct {
	id      string
	updates <-chan []EleUpdate
}

func (ev *echoView) Updates() <-chan []EleUpdate { return ev.updates }

func (ev *echoView) Parse(t *template.Template) (string, error) {
	_, err := t.Parse(`{{ define "` + ev.id + `" }}<p id="` + ev.id + `">{{ . }}</p>{{ end }}`)
	return ev.id, err
}

func newEchoView(id string) ViewBuilderFunc[string] {
	return func(done <-chan struct{}, models <-chan string) ViewComponent {
		ev := &echoView{id: id}
		ev.updates = channerics.Convert(done, models, func(s string) []EleUpdate {
			return []EleUpdate{{EleId: id, Ops: []Op{{Key: "textContent", Value: s}}}}
		})
		return ev
	}
}

func TestViewBuilder(t *testing.T) {
	Convey("When building views", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		Convey("Views and a model are required", func() {
			_, err := NewViewBuilder[int, string]().Build()
			So(errors.Is(err, ErrNoViews), ShouldBeTrue)

			_, err = NewViewBuilder[int, string]().WithView(newEchoView("a")).Build()
			So(errors.Is(err, ErrNoModel), ShouldBeTrue)
		})

		Convey("Every view receives every converted model", func() {
			source := make(chan int)
			views, err := NewViewBuilder[int, string]().
				WithContext(ctx).
				WithModel(source, func(i int) string { return strings.Repeat("x", i) }).
				WithView(newEchoView("a")).
				WithView(newEchoView("b")).
				Build()
			So(err, ShouldBeNil)
			So(len(views), ShouldEqual, 2)

			go func() { source <- 3 }()
			got := map[string]string{}
			// Broadcast delivers in lockstep, so read the views concurrently.
			merged := channerics.Merge(ctx.Done(), views[0].Updates(), views[1].Updates())
			for len(got) < 2 {
				for _, update := range <-merged {
					got[update.EleId] = update.Ops[0].Value
				}
			}
			So(got, ShouldResemble, map[string]string{"a": "xxx", "b": "xxx"})
		})

		Convey("A slow view skips to the newest model without stalling the others", func() {
			source := make(chan int)
			views, err := NewViewBuilder[int, string]().
				WithContext(ctx).
				WithModel(source, func(i int) string { return strings.Repeat("x", i) }).
				WithView(newEchoView("fast")).
				WithView(newEchoView("slow")).
				Build()
			So(err, ShouldBeNil)

			// Only the fast view is read while the models are sent.
			for i := 1; i <= 3; i++ {
				source <- i
				update := <-views[0].Updates()
				So(update[0].Ops[0].Value, ShouldEqual, strings.Repeat("x", i))
			}

			// The slow view has a stale model in flight at most, then the newest.
			var last string
			timeout := time.After(5 * time.Second)
			for last != "xxx" {
				select {
				case update := <-views[1].Updates():
					last = update[0].Ops[0].Value
				case <-timeout:
					So(last, ShouldEqual, "xxx")
					return
				}
			}
			So(last, ShouldEqual, "xxx")
		})
	})
}

func TestLatest(t *testing.T) {
	Convey("When items arrive faster than they are read", t, func() {
		done := make(chan struct{})
		defer close(done)
		in := make(chan int)
		out := latest(done, in)

		for i := 1; i <= 3; i++ {
			in <- i
		}
		So(<-out, ShouldEqual, 3)

		Convey("A closed input closes the output once drained", func() {
			in <- 4
			close(in)
			So(<-out, ShouldEqual, 4)
			_, ok := <-out
			So(ok, ShouldBeFalse)
		})
	})
}

func awaitSync(errs <-chan error) error {
	select {
	case err := <-errs:
		return err
	case <-time.After(5 * time.Second):
		return errors.New("sync did not return")
	}
}

func TestClient(t *testing.T) {
	Convey("When a websocket client syncs", t, func() {
		updates := make(chan []int)
		syncErrs := make(chan error, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cli, err := NewClient[[]int](context.Background(), updates, w, r)
			if err != nil {
				syncErrs <- err
				return
			}
			syncErrs <- cli.Sync()
		}))
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("The latest pending update is published", func() {
			updates <- []int{1}
			updates <- []int{2}
			close(updates)

			So(conn.SetReadDeadline(time.Now().Add(5*time.Second)), ShouldBeNil)
			var last []int
			for {
				var got []int
				if err := conn.ReadJSON(&got); err != nil {
					So(websocket.IsCloseError(err, websocket.CloseNormalClosure), ShouldBeTrue)
					break
				}
				last = got
			}
			So(last, ShouldResemble, []int{2})

			// Exhausted updates end the sync in an orderly way.
			So(awaitSync(syncErrs), ShouldBeNil)
		})

		Convey("A closing peer ends the sync without error", func() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			So(conn.WriteMessage(websocket.CloseMessage, msg), ShouldBeNil)
			So(awaitSync(syncErrs), ShouldBeNil)
		})
	})
}
