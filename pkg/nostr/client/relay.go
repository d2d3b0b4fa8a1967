// Package client maintains one relay session: a websocket that dials,
// reads, writes and redials on its own, for as long as the session
// context lives. Envelopes the session cannot resolve by itself (EVENT,
// EOSE, CLOSED) surface on the bounded Inbox channel; when the consumer
// falls behind, the Inbox fills and the read loop stops reading, pushing
// the backpressure down to TCP where the relay can see it.
package client

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/connection"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/closeenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/eventenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/noticeenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/okenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/reqenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filters"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/interfaces/enveloper"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/normalize"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/Hubmakerlabs/aggregatr/pkg/slog"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/puzpuzpuz/xsync/v2"
)

var log, chk = slog.New(os.Stderr)

const (
	DefaultDialTimeout    = 7 * time.Second
	DefaultPublishTimeout = 7 * time.Second
	DefaultInboxSize      = 256
	pingInterval          = 29 * time.Second
)

type writeRequest struct {
	msg    []byte
	answer chan error
}

// T is one relay session. Create with New, start with Run in its own
// goroutine, stop with Close or by cancelling the parent context.
type T struct {
	URL           string
	RequestHeader http.Header

	Ctx    context.T
	cancel context.F

	// Inbox carries EVENT, EOSE and CLOSED envelopes to the session's
	// consumer. Bounded: see package comment.
	Inbox chan enveloper.I

	// StatusC carries lifecycle transitions. Older unread transitions are
	// dropped in favor of newer ones.
	StatusC chan Status

	status      atomic.Int32
	backoff     Backoff
	writeQueue  chan writeRequest
	okCallbacks *xsync.MapOf[string, func(bool, string)]
}

func New(c context.T, url string, inboxSize int, bo Backoff) (r *T) {
	ctx, cancel := context.Cancel(c)
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &T{
		URL:         normalize.URL(url),
		Ctx:         ctx,
		cancel:      cancel,
		Inbox:       make(chan enveloper.I, inboxSize),
		StatusC:     make(chan Status, 8),
		backoff:     bo,
		writeQueue:  make(chan writeRequest, 32),
		okCallbacks: xsync.NewMapOf[func(bool, string)](),
	}
}

func (r *T) String() string { return r.URL }

func (r *T) Status() Status { return Status(r.status.Load()) }

// Close ends the session. Idempotent.
func (r *T) Close() { r.cancel() }

func (r *T) setStatus(s Status) {
	r.status.Store(int32(s))
	for {
		select {
		case r.StatusC <- s:
			return
		default:
			// drop the stalest unread transition
			select {
			case <-r.StatusC:
			default:
			}
		}
	}
}

// Run dials, serves and redials until the session context is cancelled.
// Every successful dial resets the backoff schedule; every failure or
// dropped connection waits out the next backoff step before redialling.
func (r *T) Run() {
	defer func() {
		r.setStatus(Disconnected)
		close(r.StatusC)
		close(r.Inbox)
	}()
	for {
		if r.Ctx.Err() != nil {
			return
		}
		r.setStatus(Connecting)
		dialCtx, dialCancel := context.Timeout(r.Ctx, DefaultDialTimeout)
		conn, err := connection.New(dialCtx, r.URL, r.RequestHeader)
		dialCancel()
		if err != nil {
			log.D.F("{%s} dial: %v", r.URL, err)
			if !r.sleep(r.backoff.Next()) {
				return
			}
			continue
		}
		r.backoff.Reset()
		r.setStatus(Connected)
		r.serve(conn)
		if r.Ctx.Err() != nil {
			return
		}
		r.setStatus(BackingOff)
		if !r.sleep(r.backoff.Next()) {
			return
		}
	}
}

// sleep waits d, returning false if the session was closed meanwhile.
func (r *T) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Ctx.Done():
		return false
	}
}

// serve runs one connection until it drops: a writer goroutine draining
// the write queue and pinging, and the read loop inline. Returning tears
// both down. The read loop parks inside the websocket frame reader, so
// cancellation has to kill the socket out from under it or Run would
// never get the read loop back.
func (r *T) serve(conn *connection.C) {
	c, cancel := context.Cancel(r.Ctx)
	defer cancel()

	go func() {
		<-c.Done()
		if r.Ctx.Err() != nil {
			chk.D(conn.CloseGracefully())
			return
		}
		chk.D(conn.Close())
	}()

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := wsutil.WriteClientMessage(conn.Conn, ws.OpPing,
					nil); err != nil {

					log.D.F("{%s} ping: %v", r.URL, err)
					cancel()
					return
				}
			case wr := <-r.writeQueue:
				err := conn.WriteMessage(wr.msg)
				if err != nil {
					wr.answer <- err
				}
				close(wr.answer)
				if err != nil {
					cancel()
					return
				}
			case <-c.Done():
				return
			}
		}
	}()

	buf := new(bytes.Buffer)
	for {
		buf.Reset()
		if err := conn.ReadMessage(c, buf); err != nil {
			log.D.F("{%s} read: %v", r.URL, err)
			return
		}
		// envelopes hold references into the parse buffer, so each
		// message gets its own copy
		msg := make([]byte, buf.Len())
		copy(msg, buf.Bytes())
		env := envelopes.ParseMessage(msg)
		if env == nil {
			log.T.F("{%s} unhandled message: %s", r.URL, msg)
			continue
		}
		switch e := env.(type) {
		case *okenvelope.T:
			if cb, ok := r.okCallbacks.Load(e.ID.String()); ok {
				cb(e.OK, e.Reason)
			} else {
				log.D.F("{%s} unexpected OK for %s", r.URL, e.ID)
			}
		case *noticeenvelope.T:
			log.I.F("{%s} NOTICE: %s", r.URL, e.Text)
		default:
			select {
			case r.Inbox <- env:
			case <-c.Done():
				return
			}
		}
	}
}

// Write queues a raw message for the relay and returns a channel that
// yields the write error, closing empty on success. During an outage the
// queue holds the message until the session reconnects.
func (r *T) Write(msg []byte) <-chan error {
	ch := make(chan error, 1)
	select {
	case r.writeQueue <- writeRequest{msg: msg, answer: ch}:
	case <-r.Ctx.Done():
		ch <- fmt.Errorf("session closed")
		close(ch)
	}
	return ch
}

// SendReq opens or refreshes a subscription on the relay.
func (r *T) SendReq(id subscriptionid.T, ff filters.T) (err error) {
	var b []byte
	if b, err = (&reqenvelope.T{
		SubscriptionID: id,
		Filters:        ff,
	}).MarshalJSON(); chk.E(err) {
		return err
	}
	return <-r.Write(b)
}

// SendClose withdraws a subscription from the relay.
func (r *T) SendClose(id subscriptionid.T) (err error) {
	var b []byte
	if b, err = closeenvelope.New(id).MarshalJSON(); chk.E(err) {
		return err
	}
	return <-r.Write(b)
}

// Publish sends an EVENT to the relay and waits for its OK verdict. A
// rejection comes back as an error carrying the relay's reason.
func (r *T) Publish(c context.T, ev *event.T) (err error) {
	var cancel context.F
	if _, ok := c.Deadline(); !ok {
		c, cancel = context.Timeout(c, DefaultPublishTimeout)
	} else {
		c, cancel = context.Cancel(c)
	}
	defer cancel()

	var verdict error
	gotOK := false
	id := ev.ID.String()
	r.okCallbacks.Store(id, func(ok bool, reason string) {
		gotOK = true
		if !ok {
			verdict = fmt.Errorf("rejected by %s: %s", r.URL, reason)
		}
		cancel()
	})
	defer r.okCallbacks.Delete(id)

	var b []byte
	if b, err = (&eventenvelope.T{Event: ev}).MarshalJSON(); chk.E(err) {
		return err
	}
	if err = <-r.Write(b); err != nil {
		return err
	}
	select {
	case <-c.Done():
		if gotOK {
			return verdict
		}
		return c.Err()
	case <-r.Ctx.Done():
		return fmt.Errorf("session closed while waiting for OK")
	}
}
