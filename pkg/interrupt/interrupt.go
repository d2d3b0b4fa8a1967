// Package interrupt runs shutdown handlers on SIGINT or a programmatic
// shutdown request. Handlers run in LIFO order, the same as defers.
package interrupt

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"

	"github.com/Hubmakerlabs/aggregatr/pkg/qu"
	"github.com/Hubmakerlabs/aggregatr/pkg/slog"
)

var log = slog.GetStd()

type handlerWithSource struct {
	source string
	fn     func()
}

var (
	requested atomic.Bool

	// ch receives SIGINT (Ctrl+C) signals.
	ch chan os.Signal

	signals = []os.Signal{os.Interrupt}

	// ShutdownRequestChan can receive programmatic shutdown requests.
	ShutdownRequestChan = qu.T()

	// HandlersDone is closed after all interrupt handlers have run.
	HandlersDone = qu.T()

	addHandlerChan = make(chan handlerWithSource)
)

func listener() {
	invokeCallbacks := func(callbacks []handlerWithSource) {
		// run handlers in LIFO order
		for i := len(callbacks) - 1; i >= 0; i-- {
			log.D.Ln("running interrupt callback", i, callbacks[i].source)
			callbacks[i].fn()
		}
		log.D.Ln("interrupt handlers finished")
		HandlersDone.Q()
	}
	var callbacks []handlerWithSource
	for {
		select {
		case sig := <-ch:
			log.D.Ln("received interrupt signal", sig)
			requested.Store(true)
			invokeCallbacks(callbacks)
			return
		case <-ShutdownRequestChan.Wait():
			log.W.Ln("received shutdown request - shutting down...")
			requested.Store(true)
			invokeCallbacks(callbacks)
			return
		case handler := <-addHandlerChan:
			callbacks = append(callbacks, handler)
		}
	}
}

// AddHandler adds a handler to call when a SIGINT (Ctrl+C) is received.
func AddHandler(handler func()) {
	_, loc, line, _ := runtime.Caller(1)
	msg := fmt.Sprintf("%s:%d", loc, line)
	log.D.Ln("handler added by:", msg)
	if ch == nil {
		ch = make(chan os.Signal, 1)
		signal.Notify(ch, signals...)
		go listener()
	}
	addHandlerChan <- handlerWithSource{msg, handler}
}

// Request programmatically requests a shutdown.
func Request() {
	if requested.CompareAndSwap(false, true) {
		ShutdownRequestChan.Q()
	}
}

// Requested returns true if an interrupt has been requested.
func Requested() bool {
	return requested.Load()
}
