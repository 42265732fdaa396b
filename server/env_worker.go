package server

import (
	"errors"
	"fmt"

	"github.com/chazu/jbasic"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("server: worker stopped")

type envRequest struct {
	fn   func(*jbasic.Interpreter) interface{}
	done chan envResult
}

type envResult struct {
	value interface{}
	err   error
}

// EnvWorker serializes all access to an interpreter through a single
// goroutine. An environment is not safe for concurrent use, so every RPC
// and LSP handler goes through the worker.
type EnvWorker struct {
	interp   *jbasic.Interpreter
	requests chan envRequest
	quit     chan struct{}
}

// NewEnvWorker creates an EnvWorker and starts its goroutine.
func NewEnvWorker(interp *jbasic.Interpreter) *EnvWorker {
	w := &EnvWorker{
		interp:   interp,
		requests: make(chan envRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *EnvWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, turning a panic into an error.
func (w *EnvWorker) execute(fn func(*jbasic.Interpreter) interface{}) envResult {
	var result envResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("recovered from panic in worker: %v", r)
				result.err = fmt.Errorf("panic: %v", r)
			}
		}()
		result.value = fn(w.interp)
	}()
	return result
}

// Do runs fn on the worker goroutine and blocks until it completes.
func (w *EnvWorker) Do(fn func(*jbasic.Interpreter) interface{}) (interface{}, error) {
	req := envRequest{
		fn:   fn,
		done: make(chan envResult, 1),
	}
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. The interpreter is not closed.
func (w *EnvWorker) Stop() {
	close(w.quit)
}
