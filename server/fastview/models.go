// Package fastview implements server-side views that push element updates to a
// browser over a websocket. A view renders its initial form as an html template
// and afterwards publishes small attribute and text changes.
package fastview

import "html/template"

// EleUpdate is an element identifier and a set of operations to apply to it.
type EleUpdate struct {
	// The id by which to find the element.
	EleId string
	// Op keys are attribute keys or 'textContent'. ('x','123') sets attribute x to 123,
	// ('textContent','abc') sets ele.textContent to abc.
	Ops []Op
}

// Op is a key and value, e.g. an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent is a view that can be added to a page template and then kept current
// through the ele-updates on its Updates channel.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse adds the view's definition to the parent template, inheriting its func-map,
	// and returns the name of the defined template.
	Parse(*template.Template) (string, error)
}
