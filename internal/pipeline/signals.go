package pipeline

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// signalGuard owns a temporary SIGINT/SIGTERM subscription for the duration
// of one execution. The guard is installed and released by the same call
// frame; Release restores the previous signal disposition and is safe to call
// more than once. Restoration is best effort and never panics, since it runs
// on the shutdown path where a secondary failure must not mask the run's
// outcome.
type signalGuard struct {
	ch   chan os.Signal
	once sync.Once
}

// installSignalGuard subscribes to interrupt signals and invokes onSignal for
// each one from a dedicated goroutine.
func installSignalGuard(onSignal func(os.Signal)) *signalGuard {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range ch {
			onSignal(sig)
		}
	}()

	return &signalGuard{ch: ch}
}

// Release unsubscribes and stops the delivery goroutine.
func (g *signalGuard) Release() {
	defer func() { _ = recover() }()
	g.once.Do(func() {
		signal.Stop(g.ch)
		close(g.ch)
	})
}
