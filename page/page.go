package page

import (
	"sort"
	"sync"
)

// Element ids used by the progress page.
const (
	StatusID              = "processing-status"
	ProgressID            = "processing-progress"
	ProcessingContainerID = "processing-container"
	ResultContainerID     = "result-container"
	FormID                = "video-form"
	URLFieldID            = "youtube_url"
)

// HiddenClass is the utility class that hides an element.
const HiddenClass = "d-none"

const subscriberBuffer = 100

// ElementState is the JSON-ready state of one element.
type ElementState struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Style      map[string]string `json:"style,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Classes    []string          `json:"classes,omitempty"`
}

// Change is published to subscribers after every element mutation. It
// carries the full state of the mutated element.
type Change struct {
	Element ElementState `json:"element"`
}

// Element is a mutable page element owned by a [Document].
//
// All methods are safe for concurrent use. Mutations that do not change the
// element's state are not published.
type Element struct {
	doc   *Document
	id    string
	text  string
	style map[string]string
	attrs map[string]string
	class map[string]struct{}
}

// ID returns the element id.
func (e *Element) ID() string {
	return e.id
}

// SetText replaces the element's text content.
func (e *Element) SetText(text string) {
	e.doc.mutate(e, func() bool {
		if e.text == text {
			return false
		}
		e.text = text
		return true
	})
}

// Text returns the element's text content.
func (e *Element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.text
}

// SetStyle sets one inline style property.
func (e *Element) SetStyle(property, value string) {
	e.doc.mutate(e, func() bool {
		if old, ok := e.style[property]; ok && old == value {
			return false
		}
		e.style[property] = value
		return true
	})
}

// Style returns one inline style property, or "" if unset.
func (e *Element) Style(property string) string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.style[property]
}

// SetAttribute sets one attribute.
func (e *Element) SetAttribute(name, value string) {
	e.doc.mutate(e, func() bool {
		if old, ok := e.attrs[name]; ok && old == value {
			return false
		}
		e.attrs[name] = value
		return true
	})
}

// Attribute returns an attribute value and whether it is set.
func (e *Element) Attribute(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	v, ok := e.attrs[name]
	return v, ok
}

// AddClass adds a class to the element's class list.
func (e *Element) AddClass(name string) {
	e.doc.mutate(e, func() bool {
		if _, ok := e.class[name]; ok {
			return false
		}
		e.class[name] = struct{}{}
		return true
	})
}

// RemoveClass removes a class from the element's class list.
func (e *Element) RemoveClass(name string) {
	e.doc.mutate(e, func() bool {
		if _, ok := e.class[name]; !ok {
			return false
		}
		delete(e.class, name)
		return true
	})
}

// HasClass reports whether the class list contains name.
func (e *Element) HasClass(name string) bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	_, ok := e.class[name]
	return ok
}

// state must be called with the document lock held.
func (e *Element) state() ElementState {
	classes := make([]string, 0, len(e.class))
	for c := range e.class {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	return ElementState{
		ID:         e.id,
		Text:       e.text,
		Style:      copyMap(e.style),
		Attributes: copyMap(e.attrs),
		Classes:    classes,
	}
}

// Document is an in-memory page: a fixed set of elements addressed by id.
//
// Elements are created when the document is built and never added or
// removed afterwards. Subscribers receive a [Change] per mutation via
// buffered channels; a slow subscriber misses changes rather than blocking
// the writer.
type Document struct {
	mu       sync.RWMutex
	elements map[string]*Element

	subMu       sync.RWMutex
	subscribers map[chan Change]struct{}
}

// NewDocument creates a document containing one empty element per id.
func NewDocument(ids ...string) *Document {
	d := &Document{
		elements:    make(map[string]*Element, len(ids)),
		subscribers: make(map[chan Change]struct{}),
	}
	for _, id := range ids {
		d.elements[id] = &Element{
			doc:   d,
			id:    id,
			style: make(map[string]string),
			attrs: make(map[string]string),
			class: make(map[string]struct{}),
		}
	}
	return d
}

// NewProgressPage builds the standard progress page: status text, progress
// bar at 0, the processing container visible and the result container
// hidden. Construction does not publish changes.
func NewProgressPage() *Document {
	d := NewDocument(StatusID, ProgressID, ProcessingContainerID, ResultContainerID)

	progress := d.elements[ProgressID]
	progress.style["width"] = "0%"
	progress.attrs["role"] = "progressbar"
	progress.attrs["aria-valuemin"] = "0"
	progress.attrs["aria-valuemax"] = "100"
	progress.attrs["aria-valuenow"] = "0"

	d.elements[ResultContainerID].class[HiddenClass] = struct{}{}
	return d
}

// Element returns the element with the given id, or nil if the document
// has no such element.
func (d *Document) Element(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.elements[id]
}

// Snapshot returns the state of every element, ordered by id.
func (d *Document) Snapshot() []ElementState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.elements))
	for id := range d.elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	states := make([]ElementState, 0, len(ids))
	for _, id := range ids {
		states = append(states, d.elements[id].state())
	}
	return states
}

// Subscribe returns a channel receiving every subsequent [Change].
//
// Caller must call [Document.Unsubscribe] when done.
func (d *Document) Subscribe() <-chan Change {
	ch := make(chan Change, subscriberBuffer)

	d.subMu.Lock()
	d.subscribers[ch] = struct{}{}
	d.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (d *Document) Unsubscribe(ch <-chan Change) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	for subCh := range d.subscribers {
		if subCh == ch {
			delete(d.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// UnsubscribeAll removes every subscription and closes its channel.
// Later calls to [Document.Unsubscribe] with those channels are no-ops.
func (d *Document) UnsubscribeAll() {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	for ch := range d.subscribers {
		delete(d.subscribers, ch)
		close(ch)
	}
}

// mutate applies fn under the document lock and publishes the element's new
// state if fn reports a change.
func (d *Document) mutate(e *Element, fn func() bool) {
	d.mu.Lock()
	changed := fn()
	var st ElementState
	if changed {
		st = e.state()
	}
	d.mu.Unlock()

	if changed {
		d.publish(Change{Element: st})
	}
}

func (d *Document) publish(c Change) {
	d.subMu.RLock()
	defer d.subMu.RUnlock()

	for ch := range d.subscribers {
		select {
		case ch <- c:
		default:
			// subscriber is slow, drop the change
		}
	}
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
