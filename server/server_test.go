package server

import (
	"testing"
	"time"

	"github.com/chazu/jbasic"
)

func TestListenAndServeStop(t *testing.T) {
	interp, err := jbasic.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer interp.Close()

	srv := New(interp)
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe("127.0.0.1:0") }()

	srv.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe = %v, want nil after Stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after Stop")
	}
}
