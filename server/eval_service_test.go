package server

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/jbasic/vm"
)

// ---------------------------------------------------------------------------
// Evaluate
// ---------------------------------------------------------------------------

func TestEvaluate(t *testing.T) {
	tests := []struct {
		source string
		result string
		kind   string
	}{
		{"42", "42", "Int"},
		{"3 + 4", "7", "Int"},
		{"1 + 7 + 2 * (3.0 / (1 + 1))", "11.0", "Float"},
		{"'hello'", "hello", "String"},
		{"2 > 1", "TRUE", "Bool"},
		{"(1, 2, 3)(1)", "2", "Int"},
		{"EVAL_A = 5\nEVAL_A * 2", "10", "Int"},
	}

	svc := newTestEvalService()
	for _, tc := range tests {
		t.Run(tc.source, func(t *testing.T) {
			resp, err := svc.Evaluate(bg(), sourceReq(t, tc.source))
			if err != nil {
				t.Fatalf("Evaluate returned error: %v", err)
			}
			if !field(resp, "success").GetBoolValue() {
				t.Fatalf("Evaluate was not successful: %s", field(resp, "errorMessage").GetStringValue())
			}
			if got := field(resp, "result").GetStringValue(); got != tc.result {
				t.Errorf("result = %q, want %q", got, tc.result)
			}
			if got := field(resp, "kind").GetStringValue(); got != tc.kind {
				t.Errorf("kind = %q, want %q", got, tc.kind)
			}
		})
	}
}

func TestEvaluate_Error(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Evaluate(bg(), sourceReq(t, "1 +\n2 / 0"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if field(resp, "success").GetBoolValue() {
		t.Fatal("Evaluate of a broken program succeeded")
	}
	if got := field(resp, "errorKind").GetStringValue(); got != vm.KindStructural.String() {
		t.Errorf("errorKind = %q, want %q", got, vm.KindStructural)
	}
	if field(resp, "line").GetNumberValue() != 1 {
		t.Errorf("line = %v, want 1", field(resp, "line"))
	}
	if !strings.Contains(field(resp, "errorMessage").GetStringValue(), "operand") {
		t.Errorf("errorMessage = %q", field(resp, "errorMessage").GetStringValue())
	}
}

func TestEvaluate_EmptySource(t *testing.T) {
	svc := newTestEvalService()

	_, err := svc.Evaluate(bg(), sourceReq(t, "  "))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestEvaluate_StatePersists(t *testing.T) {
	svc := newTestEvalService()

	if _, err := svc.Evaluate(bg(), sourceReq(t, "PERSIST_X = 20")); err != nil {
		t.Fatal(err)
	}
	resp, err := svc.Evaluate(bg(), sourceReq(t, "PERSIST_X + 1"))
	if err != nil {
		t.Fatal(err)
	}
	if got := field(resp, "result").GetStringValue(); got != "21" {
		t.Errorf("result = %q, want 21", got)
	}
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_CapturesOutput(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Run(bg(), sourceReq(t, "RUN_I = 0\nWHILE RUN_I < 3\nPRINT RUN_I\nRUN_I = RUN_I + 1\nENDWHILE"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !field(resp, "success").GetBoolValue() {
		t.Fatalf("Run was not successful: %s", field(resp, "errorMessage").GetStringValue())
	}
	if got := field(resp, "output").GetStringValue(); got != "0\n1\n2\n" {
		t.Errorf("output = %q", got)
	}
	if got := field(resp, "steps").GetNumberValue(); got != 3 {
		t.Errorf("steps = %v, want 3", got)
	}
	if len(field(resp, "runId").GetStringValue()) != 36 {
		t.Errorf("runId = %q, want a UUID", field(resp, "runId").GetStringValue())
	}
}

func TestRun_UniqueIDs(t *testing.T) {
	svc := newTestEvalService()

	a, err := svc.Run(bg(), sourceReq(t, "PRINT 1"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Run(bg(), sourceReq(t, "PRINT 1"))
	if err != nil {
		t.Fatal(err)
	}
	if field(a, "runId").GetStringValue() == field(b, "runId").GetStringValue() {
		t.Error("two runs share a runId")
	}
}

func TestRun_PartialOutputOnError(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Run(bg(), sourceReq(t, "PRINT 'before'\nPRINT UNBOUND_RUN + 1"))
	if err != nil {
		t.Fatal(err)
	}
	if field(resp, "success").GetBoolValue() {
		t.Fatal("Run succeeded")
	}
	if got := field(resp, "output").GetStringValue(); got != "before\n" {
		t.Errorf("output = %q", got)
	}
	if got := field(resp, "errorKind").GetStringValue(); got != vm.KindType.String() {
		t.Errorf("errorKind = %q", got)
	}
}

func TestRun_Cancelled(t *testing.T) {
	svc := newTestEvalService()

	ctx, cancel := context.WithCancel(bg())
	cancel()
	resp, err := svc.Run(ctx, sourceReq(t, "WHILE 1\nENDWHILE"))
	if err != nil {
		t.Fatal(err)
	}
	if field(resp, "success").GetBoolValue() {
		t.Error("cancelled run succeeded")
	}
}

// ---------------------------------------------------------------------------
// CheckSyntax
// ---------------------------------------------------------------------------

func TestCheckSyntax(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.CheckSyntax(bg(), sourceReq(t, "IF 1 THEN\nPRINT 1\nENDIF"))
	if err != nil {
		t.Fatal(err)
	}
	if !field(resp, "valid").GetBoolValue() {
		t.Errorf("valid program reported invalid: %v", field(resp, "diagnostics"))
	}

	resp, err = svc.CheckSyntax(bg(), sourceReq(t, "PRINT 1\nPRINT 'open"))
	if err != nil {
		t.Fatal(err)
	}
	if field(resp, "valid").GetBoolValue() {
		t.Fatal("unterminated string reported valid")
	}
	diags := field(resp, "diagnostics").GetListValue().GetValues()
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0].GetStructValue().GetFields()
	if d["line"].GetNumberValue() != 2 || d["column"].GetNumberValue() != 7 {
		t.Errorf("diagnostic at %v:%v, want 2:7", d["line"], d["column"])
	}
}

// ---------------------------------------------------------------------------
// Symbols and Snapshot
// ---------------------------------------------------------------------------

func TestSymbolsAndSnapshot(t *testing.T) {
	svc := NewEvalService(newIsolatedWorker(t))

	if _, err := svc.Evaluate(bg(), sourceReq(t, "A = 6 * 7\nB = 'x'")); err != nil {
		t.Fatal(err)
	}

	resp, err := svc.Symbols(bg(), emptyReq())
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]map[string]string{}
	for _, v := range field(resp, "symbols").GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		found[f["name"].GetStringValue()] = map[string]string{
			"type":  f["type"].GetStringValue(),
			"value": f["value"].GetStringValue(),
		}
	}
	if a := found["A"]; a["type"] != "Int" || a["value"] != "42" {
		t.Errorf("A = %v", a)
	}
	if b := found["B"]; b["type"] != "String" || b["value"] != "x" {
		t.Errorf("B = %v", b)
	}
	if _, ok := found["DIM"]; !ok {
		t.Error("natives missing from symbols")
	}

	resp, err = svc.Snapshot(bg(), emptyReq())
	if err != nil {
		t.Fatal(err)
	}
	data, err := base64.StdEncoding.DecodeString(field(resp, "cbor").GetStringValue())
	if err != nil {
		t.Fatalf("cbor is not base64: %v", err)
	}
	snap, err := vm.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if int(field(resp, "symbols").GetNumberValue()) != len(snap.Symbols) {
		t.Errorf("symbols = %v, snapshot has %d", field(resp, "symbols"), len(snap.Symbols))
	}
}

// ---------------------------------------------------------------------------
// Over HTTP
// ---------------------------------------------------------------------------

func TestServer_Connect(t *testing.T) {
	ts := newTestServer(t)

	for _, opts := range [][]connect.ClientOption{
		nil,
		{connect.WithProtoJSON()},
		{connect.WithGRPCWeb()},
	} {
		client := newClient(ts, EvaluateProcedure, opts...)
		resp, err := client.CallUnary(bg(), sourceReq(t, "2 + 3 * 4"))
		if err != nil {
			t.Fatalf("CallUnary: %v", err)
		}
		if got := field(resp, "result").GetStringValue(); got != "14" {
			t.Errorf("result = %q, want 14", got)
		}
	}
}

func TestServer_InvalidArgument(t *testing.T) {
	ts := newTestServer(t)

	_, err := newClient(ts, RunProcedure).CallUnary(bg(), emptyReq())
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestServer_UnknownProcedure(t *testing.T) {
	ts := newTestServer(t)

	_, err := newClient(ts, "/"+EvaluationServiceName+"/Nope").CallUnary(bg(), emptyReq())
	if connect.CodeOf(err) != connect.CodeUnimplemented && connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("code = %v, want Unimplemented or NotFound", connect.CodeOf(err))
	}
}
