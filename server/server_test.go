package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mazelab/grid_world"
	"mazelab/maze_store"
	"mazelab/reinforcement"
	"mazelab/server/cell_views"
	"mazelab/server/fastview"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

func get(url string) (int, []byte) {
	resp, err := http.Get(url)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	So(err, ShouldBeNil)
	return resp.StatusCode, body
}

func put(url string, body []byte) int {
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	So(err, ShouldBeNil)
	resp, err := http.DefaultClient.Do(req)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	return resp.StatusCode
}

func del(url string) int {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	So(err, ShouldBeNil)
	resp, err := http.DefaultClient.Do(req)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	return resp.StatusCode
}

func definition(name string, rows []string) []byte {
	buf := &bytes.Buffer{}
	So(grid_world.WriteDefinition(buf, grid_world.MustFromArt(name, rows).Definition()), ShouldBeNil)
	return buf.Bytes()
}

func TestServer(t *testing.T) {
	Convey("When serving a store and a training run", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := maze_store.NewFileStore(t.TempDir())
		g := grid_world.MustFromArt("Lab_debug", grid_world.DebugMaze)
		So(store.Save(ctx, g.Definition()), ShouldBeNil)

		table, err := reinforcement.NewQTable(g.Size(), grid_world.NumDirections)
		So(err, ShouldBeNil)
		snapshots := make(chan cell_views.Snapshot)
		srv, err := NewServer(ctx, "localhost:0", store, cell_views.Snapshot{Grid: g, Table: table}, snapshots)
		So(err, ShouldBeNil)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		Convey("The index renders the views", func() {
			status, body := get(ts.URL + "/")
			So(status, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, `id="valuesgrid"`)
			So(string(body), ShouldContainSubstring, `id="progress-episode"`)
		})

		Convey("The health check answers", func() {
			status, body := get(ts.URL + "/health")
			So(status, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, "healthy")
		})

		Convey("Mazes are listed and loaded", func() {
			status, body := get(ts.URL + "/api/mazes")
			So(status, ShouldEqual, http.StatusOK)
			var names []string
			So(json.Unmarshal(body, &names), ShouldBeNil)
			So(names, ShouldResemble, []string{"Lab_debug"})

			status, body = get(ts.URL + "/api/mazes/Lab_debug")
			So(status, ShouldEqual, http.StatusOK)
			def, err := grid_world.ReadDefinition(bytes.NewReader(body))
			So(err, ShouldBeNil)
			So(def, ShouldResemble, g.Definition())

			status, _ = get(ts.URL + "/api/mazes/missing")
			So(status, ShouldEqual, http.StatusNotFound)
		})

		Convey("Uploaded mazes are validated", func() {
			So(put(ts.URL+"/api/mazes/Lab_open", definition("Lab_open", grid_world.OpenMaze)), ShouldEqual, http.StatusNoContent)
			status, _ := get(ts.URL + "/api/mazes/Lab_open")
			So(status, ShouldEqual, http.StatusOK)

			// A nameless body takes the path's name.
			So(put(ts.URL+"/api/mazes/Lab_anon", definition("", grid_world.OpenMaze)), ShouldEqual, http.StatusNoContent)
			status, _ = get(ts.URL + "/api/mazes/Lab_anon")
			So(status, ShouldEqual, http.StatusOK)

			So(put(ts.URL+"/api/mazes/Lab_other", definition("Lab_open", grid_world.OpenMaze)), ShouldEqual, http.StatusBadRequest)
			So(put(ts.URL+"/api/mazes/Lab_bad", []byte("{")), ShouldEqual, http.StatusBadRequest)
			So(put(ts.URL+"/api/mazes/bad.name", definition("bad.name", grid_world.OpenMaze)), ShouldEqual, http.StatusBadRequest)

			def := g.Definition()
			def.Name = "Lab_anchors"
			def.Goal = def.Start
			buf := &bytes.Buffer{}
			So(grid_world.WriteDefinition(buf, def), ShouldBeNil)
			So(put(ts.URL+"/api/mazes/Lab_anchors", buf.Bytes()), ShouldEqual, http.StatusBadRequest)
			status, _ = get(ts.URL + "/api/mazes/Lab_anchors")
			So(status, ShouldEqual, http.StatusNotFound)

			huge := []byte(`{"name":"Lab_huge","width":50000,"height":50000,"start":[0,0],"goal":[1,0],"cells":[]}`)
			So(put(ts.URL+"/api/mazes/Lab_huge", huge), ShouldEqual, http.StatusBadRequest)
			status, _ = get(ts.URL + "/api/mazes/Lab_huge")
			So(status, ShouldEqual, http.StatusNotFound)
		})

		Convey("Mazes are deleted", func() {
			So(del(ts.URL+"/api/mazes/Lab_debug"), ShouldEqual, http.StatusNoContent)
			status, _ := get(ts.URL + "/api/mazes/Lab_debug")
			So(status, ShouldEqual, http.StatusNotFound)
			So(del(ts.URL+"/api/mazes/Lab_debug"), ShouldEqual, http.StatusNotFound)
		})

		Convey("Stored mazes are solved", func() {
			status, body := get(ts.URL + "/api/mazes/Lab_debug/path?algorithm=bfs")
			So(status, ShouldEqual, http.StatusOK)
			var resp PathResponse
			So(json.Unmarshal(body, &resp), ShouldBeNil)
			So(resp.Found, ShouldBeTrue)
			So(resp.Algorithm, ShouldEqual, "bfs")
			So(len(resp.Path), ShouldEqual, 6)
			So(resp.NodesInvestigated, ShouldBeGreaterThan, 0)

			status, body = get(ts.URL + "/api/mazes/Lab_debug/path")
			So(status, ShouldEqual, http.StatusOK)
			So(json.Unmarshal(body, &resp), ShouldBeNil)
			So(resp.Algorithm, ShouldEqual, "bfs")

			status, _ = get(ts.URL + "/api/mazes/Lab_debug/path?algorithm=astar")
			So(status, ShouldEqual, http.StatusBadRequest)
			status, _ = get(ts.URL + "/api/mazes/missing/path?algorithm=dfs")
			So(status, ShouldEqual, http.StatusNotFound)
		})

		Convey("Snapshots reach websocket clients as element updates", func() {
			url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			// The subscription is registered by the handler after the upgrade.
			table.Set(0, int(grid_world.Right), 0.5)
			snap := cell_views.Snapshot{
				Grid:  g,
				Table: table,
				Stats: reinforcement.EpisodeStats{Episode: 0, Outcome: reinforcement.Goal},
				Goals: 1,
			}
			deadline := time.Now().Add(5 * time.Second)
			So(conn.SetReadDeadline(deadline), ShouldBeNil)
			received := make(chan map[string]string, 1)
			go func() {
				seen := map[string]string{}
				for {
					var updates []fastview.EleUpdate
					if err := conn.ReadJSON(&updates); err != nil {
						received <- seen
						return
					}
					for _, update := range updates {
						seen[update.EleId] = update.Ops[0].Value
					}
					_, progressed := seen["progress-outcome"]
					_, valued := seen["0-0-value-text"]
					if progressed && valued {
						received <- seen
						return
					}
				}
			}()

			// Keep publishing until the client has seen an update, since the
			// subscription may not exist yet when the first snapshot is sent.
			var seen map[string]string
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for seen == nil {
				select {
				case snapshots <- snap:
				case seen = <-received:
				case <-ticker.C:
				}
			}
			So(seen["progress-outcome"], ShouldEqual, "goal")
			So(seen["0-0-value-text"], ShouldEqual, "0.50")

			// The index reflects the latest snapshot.
			_, body := get(ts.URL + "/")
			So(string(body), ShouldContainSubstring, "100.0%")
		})
	})
}

func TestStatusOf(t *testing.T) {
	Convey("Errors map to http statuses", t, func() {
		So(statusOf(maze_store.ErrNotFound), ShouldEqual, http.StatusNotFound)
		So(statusOf(grid_world.ErrConfiguration), ShouldEqual, http.StatusBadRequest)
		So(statusOf(grid_world.ErrInvariantViolation), ShouldEqual, http.StatusBadRequest)
		So(statusOf(grid_world.ErrOutOfBounds), ShouldEqual, http.StatusBadRequest)
		So(statusOf(io.ErrUnexpectedEOF), ShouldEqual, http.StatusInternalServerError)
	})
}
