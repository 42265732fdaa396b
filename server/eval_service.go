package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/jbasic"
	"github.com/chazu/jbasic/vm"
)

// EvaluationServiceName is the fully-qualified name of the evaluation
// service.
const EvaluationServiceName = "jbasic.v1.EvaluationService"

// Procedure paths of the evaluation service.
const (
	EvaluateProcedure    = "/" + EvaluationServiceName + "/Evaluate"
	RunProcedure         = "/" + EvaluationServiceName + "/Run"
	CheckSyntaxProcedure = "/" + EvaluationServiceName + "/CheckSyntax"
	SymbolsProcedure     = "/" + EvaluationServiceName + "/Symbols"
	SnapshotProcedure    = "/" + EvaluationServiceName + "/Snapshot"
)

// Every procedure takes and returns a google.protobuf.Struct, so the
// service needs no generated code.
type (
	structRequest  = connect.Request[structpb.Struct]
	structResponse = connect.Response[structpb.Struct]
)

// EvalService implements the EvaluationService Connect handler.
type EvalService struct {
	worker *EnvWorker
}

// NewEvalService creates an EvalService.
func NewEvalService(worker *EnvWorker) *EvalService {
	return &EvalService{worker: worker}
}

// NewEvaluationServiceHandler builds an HTTP handler serving svc over the
// Connect, gRPC and gRPC-Web protocols. It returns the path to mount the
// handler on.
func NewEvaluationServiceHandler(svc *EvalService, opts ...connect.HandlerOption) (string, http.Handler) {
	handlers := map[string]*connect.Handler{
		EvaluateProcedure:    connect.NewUnaryHandler(EvaluateProcedure, svc.Evaluate, opts...),
		RunProcedure:         connect.NewUnaryHandler(RunProcedure, svc.Run, opts...),
		CheckSyntaxProcedure: connect.NewUnaryHandler(CheckSyntaxProcedure, svc.CheckSyntax, opts...),
		SymbolsProcedure:     connect.NewUnaryHandler(SymbolsProcedure, svc.Symbols, opts...),
		SnapshotProcedure:    connect.NewUnaryHandler(SnapshotProcedure, svc.Snapshot, opts...),
	}
	return "/" + EvaluationServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// Evaluate runs source and returns the value of its last instruction.
func (s *EvalService) Evaluate(ctx context.Context, req *structRequest) (*structResponse, error) {
	source, err := requireSource(req.Msg)
	if err != nil {
		return nil, err
	}

	result, err := s.worker.Do(func(interp *jbasic.Interpreter) interface{} {
		v, err := interp.Eval(ctx, source)
		if err != nil {
			return failure(err)
		}
		return map[string]interface{}{
			"success": true,
			"result":  v.String(),
			"kind":    v.TypeName(),
		}
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return respond(result.(map[string]interface{}))
}

// Run executes source and returns everything it printed.
func (s *EvalService) Run(ctx context.Context, req *structRequest) (*structResponse, error) {
	source, err := requireSource(req.Msg)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	log.Debugf("run %s: %d bytes", runID, len(source))

	result, err := s.worker.Do(func(interp *jbasic.Interpreter) interface{} {
		env := interp.Env()
		var out bytes.Buffer
		prev := env.Output()
		env.SetOutput(&out)
		defer env.SetOutput(prev)

		runErr := interp.Exec(ctx, source)
		fields := map[string]interface{}{
			"success": runErr == nil,
			"runId":   runID,
			"steps":   env.Steps(),
		}
		if runErr != nil {
			for k, v := range failure(runErr) {
				fields[k] = v
			}
		}
		fields["output"] = out.String()
		return fields
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return respond(result.(map[string]interface{}))
}

// CheckSyntax validates source without running it.
func (s *EvalService) CheckSyntax(ctx context.Context, req *structRequest) (*structResponse, error) {
	source, err := requireSource(req.Msg)
	if err != nil {
		return nil, err
	}

	errs := jbasic.Check(source)
	diagnostics := make([]interface{}, 0, len(errs))
	for _, e := range errs {
		diagnostics = append(diagnostics, diagnostic(e))
	}
	return respond(map[string]interface{}{
		"valid":       len(errs) == 0,
		"diagnostics": diagnostics,
	})
}

// Symbols lists every symbol of the environment with its binding.
func (s *EvalService) Symbols(ctx context.Context, req *structRequest) (*structResponse, error) {
	result, err := s.worker.Do(func(interp *jbasic.Interpreter) interface{} {
		return interp.Env().Snapshot().Symbols
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	infos := result.([]vm.SymbolInfo)
	symbols := make([]interface{}, 0, len(infos))
	for _, info := range infos {
		symbols = append(symbols, map[string]interface{}{
			"name":  info.Name,
			"type":  info.Type,
			"value": info.Value,
			"refs":  info.Refs,
		})
	}
	return respond(map[string]interface{}{"symbols": symbols})
}

// Snapshot returns the CBOR-encoded environment snapshot, base64 encoded.
func (s *EvalService) Snapshot(ctx context.Context, req *structRequest) (*structResponse, error) {
	result, err := s.worker.Do(func(interp *jbasic.Interpreter) interface{} {
		return interp.Env().Snapshot()
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	snap := result.(vm.Snapshot)
	data, err := vm.EncodeSnapshot(snap)
	if err != nil {
		log.Errorf("encoding snapshot: %s", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return respond(map[string]interface{}{
		"cbor":      base64.StdEncoding.EncodeToString(data),
		"symbols":   len(snap.Symbols),
		"arenaUsed": snap.Arena.Used,
	})
}

func requireSource(msg *structpb.Struct) (string, error) {
	source := strings.TrimSpace(msg.GetFields()["source"].GetStringValue())
	if source == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	return msg.GetFields()["source"].GetStringValue(), nil
}

// failure describes an interpreter error for a response.
func failure(err error) map[string]interface{} {
	fields := map[string]interface{}{
		"success":      false,
		"errorMessage": err.Error(),
	}
	if kind, ok := vm.KindOf(err); ok {
		fields["errorKind"] = kind.String()
	}
	if pos, ok := vm.PositionOf(err); ok {
		fields["line"] = pos.Line
		fields["column"] = pos.Column
	}
	return fields
}

func diagnostic(err error) map[string]interface{} {
	d := map[string]interface{}{"message": err.Error()}
	if pos, ok := vm.PositionOf(err); ok {
		d["line"] = pos.Line
		d["column"] = pos.Column
	}
	return d
}

func respond(fields map[string]interface{}) (*structResponse, error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}
