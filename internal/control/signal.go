package control

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// HandleSignals raises stop on the first SIGINT or SIGTERM so the run winds
// down at its next checkpoint. A second signal cancels the returned context.
// callback, if non-nil, is told about every signal received.
//
// Call the returned CancelFunc to release the handler.
func HandleSignals(parent context.Context, stop *Flag, callback func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigChan)

		received := 0
		for {
			select {
			case sig := <-sigChan:
				received++
				if callback != nil {
					callback(sig)
				}
				if received == 1 {
					stop.Set()
					continue
				}
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return ctx, func() {
		cancel()
		<-done
	}
}
