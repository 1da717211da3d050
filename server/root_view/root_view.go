// Package root_view is the main page: the container of all the view components
// and the wiring of their update channels to websocket subscribers.
package root_view

import (
	"context"
	"html/template"
	"sync"
	"time"

	"mazelab/server/cell_views"
	"mazelab/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const batchRate = time.Millisecond * 20

// RootView is the main page's index.html.
type RootView struct {
	views []fastview.ViewComponent

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewRootView builds the page's views over the snapshot channel and starts
// fanning their updates out to subscribers until ctx is done.
func NewRootView(
	ctx context.Context,
	snapshots <-chan cell_views.Snapshot,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[cell_views.Snapshot, cell_views.Board]().
		WithContext(ctx).
		WithModel(snapshots, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewProgressView(done, boards)
		}).
		WithView(func(
			done <-chan struct{},
			boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewValuesGrid(done, boards)
		}).
		WithView(func(
			done <-chan struct{},
			boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewValueFunction(done, boards)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	rv := &RootView{
		views: views,
		subs:  map[*subscriber]struct{}{},
	}
	go rv.fanOut(ctx.Done(), fanIn(ctx.Done(), views))
	return rv, nil
}

// fanOut hands every batch to every subscriber. It never blocks on a slow subscriber.
func (rv *RootView) fanOut(done <-chan struct{}, updates <-chan []fastview.EleUpdate) {
	for batch := range channerics.OrDone(done, updates) {
		rv.mu.Lock()
		for sub := range rv.subs {
			sub.add(batch)
		}
		rv.mu.Unlock()
	}
}

// Subscribe returns a channel of ele-updates for one client. Updates for an element
// pending delivery are replaced by newer ones, so a slow client sees the latest
// state without missing elements. The channel closes when ctx is done.
func (rv *RootView) Subscribe(ctx context.Context) <-chan []fastview.EleUpdate {
	sub := &subscriber{
		pending: map[string]fastview.EleUpdate{},
		notify:  make(chan struct{}, 1),
	}
	rv.mu.Lock()
	rv.subs[sub] = struct{}{}
	rv.mu.Unlock()

	output := make(chan []fastview.EleUpdate)
	go func() {
		defer close(output)
		defer func() {
			rv.mu.Lock()
			delete(rv.subs, sub)
			rv.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.notify:
			}
			batch := sub.take()
			if len(batch) == 0 {
				continue
			}
			select {
			case output <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return output
}

// Subscribers is the number of live subscriptions.
func (rv *RootView) Subscribers() int {
	rv.mu.Lock()
	defer rv.mu.Unlock()
	return len(rv.subs)
}

type subscriber struct {
	mu      sync.Mutex
	pending map[string]fastview.EleUpdate
	notify  chan struct{}
}

func (sub *subscriber) add(batch []fastview.EleUpdate) {
	sub.mu.Lock()
	for _, update := range batch {
		sub.pending[update.EleId] = update
	}
	sub.mu.Unlock()
	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *subscriber) take() []fastview.EleUpdate {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	batch := slicedVals(sub.pending)
	sub.pending = map[string]fastview.EleUpdate{}
	return batch
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map that the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
			"max": func(i, j int) int {
				if i > j {
					return i
				}
				return j
			},
		})

	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			return "", parseErr
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The main template bootstraps the rest: it opens the websocket and applies updates.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>mazelab</title>
			<link rel="icon" href="data:,">
			<script>
				const scheme = location.protocol === "https:" ? "wss://" : "ws://";
				const ws = new WebSocket(scheme + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single, batched channel.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchRate)
}

// batchify collects updates for the passed time frame before sending, overwriting
// previously received values for the same ele-id, so only the latest values are sent.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		ticker := channerics.NewTicker(done, rate)
		flush := func() bool {
			if len(data) == 0 {
				return true
			}
			select {
			case output <- slicedVals(data):
				data = map[string]fastview.EleUpdate{}
				return true
			case <-done:
				return false
			}
		}

		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					flush()
					return
				}
				for _, update := range updates {
					data[update.EleId] = update
				}
			case <-ticker:
				if !flush() {
					return
				}
			}
		}
	}()

	return output
}

// returns the values of a map as a slice
func slicedVals[T1 comparable, T2 any](mp map[T1]T2) (sliced []T2) {
	for _, v := range mp {
		sliced = append(sliced, v)
	}
	return
}
