// Package server serves the live training views and a small json api over the maze store.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"mazelab/grid_world"
	"mazelab/maze_store"
	"mazelab/search"
	"mazelab/server/cell_views"
	"mazelab/server/fastview"
	"mazelab/server/root_view"

	"github.com/gorilla/mux"
	channerics "github.com/niceyeti/channerics/channels"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	// Maximum size of an uploaded maze definition.
	maxDefinitionSize = 1 << 20
)

// Server serves the index page of training views, its websocket, and the maze api.
// Any number of pages may be open; each websocket gets its own subscription.
type Server struct {
	addr     string
	ctx      context.Context
	store    maze_store.Store
	rootView *root_view.RootView
	router   *mux.Router

	mu     sync.Mutex
	latest cell_views.Snapshot
}

// NewServer initializes all of the views and the routes. The views follow the snapshots
// chan; initial is rendered until the first snapshot arrives.
func NewServer(
	ctx context.Context,
	addr string,
	store maze_store.Store,
	initial cell_views.Snapshot,
	snapshots <-chan cell_views.Snapshot,
) (*Server, error) {
	server := &Server{
		addr:   addr,
		ctx:    ctx,
		store:  store,
		latest: initial,
	}

	tracked := channerics.Convert(ctx.Done(), snapshots, server.track)
	rootView, err := root_view.NewRootView(ctx, tracked)
	if err != nil {
		return nil, fmt.Errorf("views: %w", err)
	}
	server.rootView = rootView
	server.router = server.routes()
	return server, nil
}

func (server *Server) track(snap cell_views.Snapshot) cell_views.Snapshot {
	server.mu.Lock()
	server.latest = snap
	server.mu.Unlock()
	return snap
}

func (server *Server) snapshot() cell_views.Snapshot {
	server.mu.Lock()
	defer server.mu.Unlock()
	return server.latest
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/health", server.serveHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/mazes", server.listMazes).Methods(http.MethodGet)
	api.HandleFunc("/mazes/{name}", server.getMaze).Methods(http.MethodGet)
	api.HandleFunc("/mazes/{name}", server.putMaze).Methods(http.MethodPut)
	api.HandleFunc("/mazes/{name}", server.deleteMaze).Methods(http.MethodDelete)
	api.HandleFunc("/mazes/{name}/path", server.solveMaze).Methods(http.MethodGet)
	return router
}

// Handler returns the server's routes, e.g. for httptest.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until the server context is done.
func (server *Server) Serve() error {
	srv := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-server.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Println("shutdown:", err)
		}
	}()

	log.Printf("serving on http://%s", server.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes view updates to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(server.ctx)
	defer cancel()

	cli, err := fastview.NewClient(ctx, server.rootView.Subscribe(ctx), w, r)
	if err != nil {
		log.Println("websocket:", err)
		return
	}
	if err := cli.Sync(); err != nil {
		log.Println("sync:", err)
	}
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	buf := &bytes.Buffer{}
	board := cell_views.Convert(server.snapshot())
	if err := renderTemplate(buf, server.rootView, board); err != nil {
		log.Println("index:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = buf.WriteTo(w)
}

func (server *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (server *Server) listMazes(w http.ResponseWriter, r *http.Request) {
	names, err := server.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (server *Server) getMaze(w http.ResponseWriter, r *http.Request) {
	def, err := server.store.Load(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// putMaze creates or replaces a maze. The body's name may be omitted but must
// otherwise match the path.
func (server *Server) putMaze(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	def, err := grid_world.ReadDefinition(io.LimitReader(r.Body, maxDefinitionSize))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", grid_world.ErrConfiguration, err))
		return
	}
	if def.Name == "" {
		def.Name = name
	}
	if def.Name != name {
		writeError(w, fmt.Errorf("%w: body names maze %q, path names %q",
			grid_world.ErrConfiguration, def.Name, name))
		return
	}
	if err := server.store.Save(r.Context(), def); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) deleteMaze(w http.ResponseWriter, r *http.Request) {
	if err := server.store.Delete(r.Context(), mux.Vars(r)["name"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PathResponse is the result of solving a stored maze.
type PathResponse struct {
	Maze              string   `json:"maze"`
	Algorithm         string   `json:"algorithm"`
	Found             bool     `json:"found"`
	Path              []string `json:"path"`
	NodesInvestigated int      `json:"nodes_investigated"`
}

func (server *Server) solveMaze(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	algName := r.URL.Query().Get("algorithm")
	if algName == "" {
		algName = string(search.BFS)
	}
	alg, err := search.ParseAlgorithm(algName)
	if err != nil {
		writeError(w, err)
		return
	}

	grid, err := maze_store.LoadGrid(r.Context(), server.store, name)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := search.Solve(grid, alg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PathResponse{
		Maze:              name,
		Algorithm:         string(alg),
		Found:             result.Found,
		Path:              grid_world.Labels(result.Path),
		NodesInvestigated: result.NodesInvestigated,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println("encode:", err)
	}
}

// statusOf maps the error taxonomy to http statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, maze_store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, grid_world.ErrConfiguration),
		errors.Is(err, grid_world.ErrInvariantViolation),
		errors.Is(err, grid_world.ErrOutOfBounds):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Println("api:", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// page is a view that can be rendered as a whole document.
type page interface {
	Parse(*template.Template) (string, error)
}

func renderTemplate(
	w io.Writer,
	vc page,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
