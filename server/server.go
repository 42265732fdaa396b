// Package server exposes a jbasic interpreter over the network: a Connect
// evaluation service (Connect, gRPC and gRPC-Web on one port) and a
// language server for editors.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/jbasic"
)

var log = commonlog.GetLogger("jbasic.server")

// JBasicServer serves one interpreter. Requests are serialized through
// an EnvWorker.
type JBasicServer struct {
	worker *EnvWorker
	mux    *http.ServeMux
	http   *http.Server
}

// New creates a server wrapping interp. The caller keeps ownership of the
// interpreter and closes it after Stop.
func New(interp *jbasic.Interpreter) *JBasicServer {
	s := &JBasicServer{
		worker: NewEnvWorker(interp),
		mux:    http.NewServeMux(),
	}
	var protocols http.Protocols
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)
	s.http = &http.Server{
		Handler:           s.mux,
		Protocols:         &protocols,
		ReadHeaderTimeout: 10 * time.Second,
	}

	evalSvc := NewEvalService(s.worker)
	path, handler := NewEvaluationServiceHandler(evalSvc,
		connect.WithInterceptors(logRequests()),
		connect.WithRecover(recoverHandler),
	)
	s.mux.Handle(path, handler)
	return s
}

// Handler returns the HTTP handler of the server, for mounting under
// another server or in tests.
func (s *JBasicServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr ("host:port" or ":port") until Stop is
// called. gRPC clients need HTTP/2, which is accepted without TLS.
func (s *JBasicServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Noticef("jbasic server listening on %s", ln.Addr())
	log.Noticef("  Connect (HTTP/JSON): http://%s%s", ln.Addr(), EvaluateProcedure)
	err = s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down the listener, if any, and the worker. A later
// ListenAndServe returns immediately.
func (s *JBasicServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.Errorf("shutting down: %s", err)
	}
	s.worker.Stop()
}

// logRequests logs every call and its failure, if any.
func logRequests() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			if err != nil {
				log.Errorf("%s failed after %s: %s", req.Spec().Procedure, time.Since(start), err)
			} else {
				log.Debugf("%s took %s", req.Spec().Procedure, time.Since(start))
			}
			return resp, err
		}
	}
}

func recoverHandler(_ context.Context, spec connect.Spec, _ http.Header, p any) error {
	log.Criticalf("panic in %s: %v", spec.Procedure, p)
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}
