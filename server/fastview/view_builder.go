package fastview

import (
	"context"
	"errors"

	channerics "github.com/niceyeti/channerics/channels"
)

// ViewBuilder wires a stream of data models, e.g. training snapshots, to one or
// more views sharing a view-model. Each view only ever sees the newest view-model:
// a view still busy rendering skips the intermediate ones instead of stalling the
// others.
type ViewBuilder[DataModel any, ViewModel any] struct {
	source  <-chan DataModel
	convert func(DataModel) ViewModel
	views   []ViewBuilderFunc[ViewModel]
	done    <-chan struct{}
}

// NewViewBuilder returns a builder for a given data-model and view-model.
func NewViewBuilder[DataModel any, ViewModel any]() *ViewBuilder[DataModel, ViewModel] {
	return &ViewBuilder[DataModel, ViewModel]{}
}

// WithModel sets the input channel and the function converting its items to the view-model.
// The conversion runs once per item, however many views there are.
func (vb *ViewBuilder[DataModel, ViewModel]) WithModel(
	input <-chan DataModel,
	convert func(DataModel) ViewModel,
) *ViewBuilder[DataModel, ViewModel] {
	vb.source = input
	vb.convert = convert
	return vb
}

// ViewBuilderFunc builds a view from a 'done' channel and its view-model channel.
type ViewBuilderFunc[ViewModel any] func(<-chan struct{}, <-chan ViewModel) ViewComponent

// WithView adds a view. Build returns the views in the order they were added.
func (vb *ViewBuilder[DataModel, ViewModel]) WithView(
	build ViewBuilderFunc[ViewModel],
) *ViewBuilder[DataModel, ViewModel] {
	vb.views = append(vb.views, build)
	return vb
}

// WithContext stops every stage when ctx is done. Without it the stages run
// until the source closes.
func (vb *ViewBuilder[DataModel, ViewModel]) WithContext(
	ctx context.Context,
) *ViewBuilder[DataModel, ViewModel] {
	vb.done = ctx.Done()
	return vb
}

// ErrNoViews is returned when Build() is called before the caller has added any views.
var ErrNoViews error = errors.New("no views to build: WithView must be called")

// ErrNoModel is returned when Build() is called before WithModel() has been called.
var ErrNoModel error = errors.New("no model specified: WithModel must be called")

// Build connects source -> convert -> broadcast -> latest-wins -> view.
func (vb *ViewBuilder[DataModel, ViewModel]) Build() ([]ViewComponent, error) {
	if len(vb.views) == 0 {
		return nil, ErrNoViews
	}
	if vb.convert == nil || vb.source == nil {
		return nil, ErrNoModel
	}

	models := channerics.Convert(vb.done, vb.source, vb.convert)
	branches := channerics.Broadcast(vb.done, models, len(vb.views))
	built := make([]ViewComponent, len(vb.views))
	for i, build := range vb.views {
		built[i] = build(vb.done, latest(vb.done, branches[i]))
	}
	return built, nil
}

// latest forwards the newest item of in, dropping any its reader was too slow to
// take. The pending item is still delivered when in closes.
func latest[T any](done <-chan struct{}, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		var pending T
		var ready bool
		for {
			var send chan<- T
			if ready {
				send = out
			}
			select {
			case <-done:
				return
			case item, ok := <-in:
				if !ok {
					if ready {
						select {
						case out <- pending:
						case <-done:
						}
					}
					return
				}
				pending, ready = item, true
			case send <- pending:
				ready = false
			}
		}
	}()
	return out
}
