// Package pipeline implements the write-queue/read-queue scheduler
// described in spec.md §4.4: requests are written to a single IRRd
// socket, replies are read back in the exact order requests were sent,
// and callbacks may enqueue further requests while the loop runs.
//
// Go's net.Conn already multiplexes blocking reads and writes through
// the runtime netpoller, so there is no raw select(2)/non-blocking
// socket mode to hand-roll here. The idiomatic rendition of "many
// in-flight queries on a single socket" is a writer goroutine draining
// the write queue while the calling goroutine reads and dispatches
// replies in order. The write queue is a mutex-guarded slice; the read
// queue is a channel of sent requests that preserves FIFO order, so it
// needs no lock of its own. When pipelining is off, Scheduler instead writes one request
// and reads its reply synchronously before returning, matching
// spec.md §4.4's non-pipelined fallback.
package pipeline

import (
	"bufio"
	"fmt"
	"sync"

	"github.com/irrquery/irrgen/internal/irrproto"
	log "github.com/sirupsen/logrus"
)

// Request is one outgoing IRRd command together with the callback that
// consumes its reply. Kind and UserData let the expander recover which
// domain operation this request represents (spec.md §9's tagged-variant
// design note).
type Request struct {
	Text     string
	Depth    int
	Kind     int
	UserData interface{}
	Callback func(Request, irrproto.Reply)
}

// Scheduler drives requests against a single IRRd connection.
type Scheduler struct {
	r *bufio.Reader
	w *bufio.Writer

	pipelining bool

	mu      sync.Mutex
	wq      []Request
	pending int // requests in wq or sent-but-unreplied
	work    chan struct{}

	sent chan Request
	errs chan error
	done chan struct{}

	closeOnce sync.Once
}

// New creates a scheduler over r/w. When pipelining is false, Enqueue
// performs its write+read synchronously and Run is a no-op.
func New(r *bufio.Reader, w *bufio.Writer, pipelining bool) *Scheduler {
	s := &Scheduler{
		r:          r,
		w:          w,
		pipelining: pipelining,
		work:       make(chan struct{}, 1),
		sent:       make(chan Request, 64),
		errs:       make(chan error, 1),
		done:       make(chan struct{}),
	}
	if pipelining {
		go s.writeLoop()
	}
	return s
}

// Enqueue adds req to the write queue. In non-pipelined mode this
// blocks until req's reply has been fully dispatched (its callback may
// itself call Enqueue, which recurses synchronously — there is exactly
// one request in flight at a time, as spec.md §4.4 describes).
func (s *Scheduler) Enqueue(req Request) error {
	if !s.pipelining {
		return s.runSync(req)
	}

	s.mu.Lock()
	s.wq = append(s.wq, req)
	s.pending++
	s.mu.Unlock()

	select {
	case s.work <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) runSync(req Request) error {
	if err := irrproto.WriteCommand(s.w, req.Text); err != nil {
		return fmt.Errorf("pipeline: writing request %q: %w", req.Text, err)
	}
	reply, err := irrproto.Read(s.r)
	if err != nil {
		return fmt.Errorf("pipeline: reading reply to %q: %w", req.Text, err)
	}
	req.Callback(req, reply)
	return nil
}

// writeLoop drains wq and hands each written request to s.sent in
// order, so the reader side learns exactly which request a reply
// belongs to without a separately locked read queue.
func (s *Scheduler) writeLoop() {
	for {
		s.mu.Lock()
		for len(s.wq) == 0 {
			s.mu.Unlock()
			select {
			case <-s.work:
			case <-s.done:
				return
			}
			s.mu.Lock()
		}
		req := s.wq[0]
		s.wq = s.wq[1:]
		s.mu.Unlock()

		log.WithField("cmd", req.Text).Trace("pipeline: writing")
		if err := irrproto.WriteCommand(s.w, req.Text); err != nil {
			select {
			case s.errs <- fmt.Errorf("pipeline: writing request %q: %w", req.Text, err):
			default:
			}
			return
		}

		select {
		case s.sent <- req:
		case <-s.done:
			return
		}
	}
}

// Run drains the pipeline: it reads one reply per request the writer
// has sent, dispatches it to the request's callback (which may enqueue
// more work), and returns once wq and the in-flight count both reach
// zero. No-op in non-pipelined mode, where Enqueue already drained
// synchronously. Run is reusable: the caller may Enqueue more requests
// and call Run again after it returns, as long as Close has not been
// called yet (the expander does exactly this between macro expansion
// and ASN-prefix harvesting).
func (s *Scheduler) Run() error {
	if !s.pipelining {
		return nil
	}

	for {
		s.mu.Lock()
		empty := s.pending == 0
		s.mu.Unlock()
		if empty {
			return nil
		}

		select {
		case err := <-s.errs:
			return err
		case req := <-s.sent:
			reply, err := irrproto.Read(s.r)
			if err != nil {
				return fmt.Errorf("pipeline: reading reply to %q: %w", req.Text, err)
			}
			req.Callback(req, reply)
			s.mu.Lock()
			s.pending--
			s.mu.Unlock()
		}
	}
}

// Close shuts down the writer goroutine. The caller must call Close
// exactly once, after it is done driving the scheduler entirely (no
// further Enqueue/Run calls) — not after each Run. Safe to call on a
// non-pipelined scheduler, where it is a no-op. Safe to call more than
// once; only the first call has any effect.
func (s *Scheduler) Close() {
	if !s.pipelining {
		return
	}
	s.closeOnce.Do(func() { close(s.done) })
}
