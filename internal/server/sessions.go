package server

import (
	"context"
	"errors"
	"sync"

	"github.com/jpalmerr/clipwatch/page"
)

// Watch is a running poll loop bound to one page session.
type Watch interface {
	// Stop cancels the loop and waits for it to exit.
	Stop()

	// Done is closed when the loop has ended.
	Done() <-chan struct{}
}

// StartFunc starts polling sessionID into doc. The loop must end when ctx
// is cancelled.
type StartFunc func(ctx context.Context, sessionID string, doc *page.Document) (Watch, error)

// errSessionsClosed is returned by acquire after closeAll.
var errSessionsClosed = errors.New("session registry closed")

type session struct {
	doc   *page.Document
	watch Watch
	refs  int
}

// end stops the poll loop and closes every event stream of the session.
func (sess *session) end() {
	sess.watch.Stop()
	sess.doc.UnsubscribeAll()
}

// sessions owns the page session of every watched job. A page session lives
// while at least one browser is subscribed to it; when the last one leaves,
// its poll loop is stopped. That is the navigation-away teardown.
type sessions struct {
	start   StartFunc
	onOpen  func()
	onClose func()

	mu     sync.Mutex
	ctx    context.Context
	items  map[string]*session
	closed bool
}

func newSessions(ctx context.Context, start StartFunc, onOpen, onClose func()) *sessions {
	if onOpen == nil {
		onOpen = func() {}
	}
	if onClose == nil {
		onClose = func() {}
	}
	return &sessions{
		start:   start,
		onOpen:  onOpen,
		onClose: onClose,
		ctx:     ctx,
		items:   make(map[string]*session),
	}
}

// acquire returns the session, starting its poll loop on first use, and
// takes a reference that must be returned with release.
func (s *sessions) acquire(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errSessionsClosed
	}

	if sess, ok := s.items[id]; ok {
		sess.refs++
		return sess, nil
	}

	doc := page.NewProgressPage()
	watch, err := s.start(s.ctx, id, doc)
	if err != nil {
		return nil, err
	}

	sess := &session{doc: doc, watch: watch, refs: 1}
	s.items[id] = sess
	s.onOpen()
	return sess, nil
}

// release drops a reference taken by acquire. The last release stops the
// poll loop and forgets the session. References to a session that was
// stopped in the meantime are ignored, so they never touch a newer session
// registered under the same id.
func (s *sessions) release(id string, sess *session) {
	s.mu.Lock()
	if cur, ok := s.items[id]; !ok || cur != sess {
		s.mu.Unlock()
		return
	}
	sess.refs--
	if sess.refs > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.items, id)
	s.mu.Unlock()

	sess.end()
	s.onClose()
}

// get returns an open session's document and whether its loop has ended.
func (s *sessions) get(id string) (doc *page.Document, ended bool, ok bool) {
	s.mu.Lock()
	sess, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return nil, false, false
	}

	select {
	case <-sess.watch.Done():
		ended = true
	default:
	}
	return sess.doc, ended, true
}

// stop ends a session regardless of its subscribers, closing their
// streams. It reports whether the session existed.
func (s *sessions) stop(id string) bool {
	s.mu.Lock()
	sess, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	sess.end()
	s.onClose()
	return true
}

// closeAll stops every session and refuses new ones.
func (s *sessions) closeAll() {
	s.mu.Lock()
	s.closed = true
	items := s.items
	s.items = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range items {
		sess.end()
		s.onClose()
	}
}

// count returns the number of open sessions.
func (s *sessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
