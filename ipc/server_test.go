package ipc

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nathoo/wowbridge/queue"
)

var pipeSeq atomic.Int64

// testPipeName yields a unique endpoint per test so parallel packages
// never collide on the transport.
func testPipeName() string {
	return fmt.Sprintf(`\\.\pipe\wowbridge-test-%d-%d`, os.Getpid(), pipeSeq.Add(1))
}

func startServer(t *testing.T) (*Server, *queue.Pair, string) {
	t.Helper()
	queues := queue.NewPair()
	var shutdown atomic.Bool
	name := testPipeName()
	srv := NewServer(name, queues, &shutdown)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		shutdown.Store(true)
		srv.Stop()
	})
	return srv, queues, name
}

// startResponder stands in for the frame loop: it drains requests and
// answers each with an echo of what it saw.
func startResponder(q *queue.Pair) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for _, req := range q.DrainRequests() {
					q.PushResponses(fmt.Sprintf("OK:%s:%d", req.Kind, req.SpellID))
				}
			}
		}
	}()
	return func() { close(done) }
}

func TestServer_Roundtrip(t *testing.T) {
	_, queues, name := startServer(t)
	defer startResponder(queues)()

	c, err := Dial(name)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	resp, err := c.Roundtrip("GET_CD:768")
	if err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	if resp != "OK:GET_CD:768" {
		t.Fatalf("got %q", resp)
	}
}

// Responses come back in request order on one connection: the server never
// reads the next command before the previous response is settled.
func TestServer_SequentialOrdering(t *testing.T) {
	_, queues, name := startServer(t)
	defer startResponder(queues)()

	c, err := Dial(name)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	for i := 1; i <= 10; i++ {
		resp, err := c.Roundtrip(fmt.Sprintf("GET_CD:%d", i))
		if err != nil {
			t.Fatalf("roundtrip %d: %v", i, err)
		}
		want := fmt.Sprintf("OK:GET_CD:%d", i)
		if resp != want {
			t.Fatalf("roundtrip %d: got %q, want %q", i, resp, want)
		}
	}
}

// ping is answered by the server itself, so liveness works even when no
// frames are running.
func TestServer_PingWithoutFrames(t *testing.T) {
	_, _, name := startServer(t)

	c, err := Dial(name)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	resp, err := c.Roundtrip("ping")
	if err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	if resp != "PONG" {
		t.Fatalf("got %q", resp)
	}
}

// When no frame collects the request inside the poll window, the server
// writes nothing and the client's own deadline fires.
func TestServer_ResponseTimeout(t *testing.T) {
	srv, _, name := startServer(t)
	srv.PollInterval = time.Millisecond
	srv.PollAttempts = 3

	c, err := Dial(name)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	c.Timeout = 200 * time.Millisecond

	if _, err := c.Roundtrip("GET_TIME_MS"); err == nil {
		t.Fatal("expected a client-side timeout")
	}

	// The connection survives a missed response.
	resp, err := c.Roundtrip("ping")
	if err != nil {
		t.Fatalf("ping after timeout: %v", err)
	}
	if resp != "PONG" {
		t.Fatalf("got %q", resp)
	}
}

// A response that arrives after its poll window stays queued and answers
// the next command. Documented protocol behavior, not a bug.
func TestServer_OrphanResponseAnswersNextCommand(t *testing.T) {
	srv, queues, name := startServer(t)
	srv.PollInterval = time.Millisecond
	srv.PollAttempts = 3

	c, err := Dial(name)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	c.Timeout = 200 * time.Millisecond

	if _, err := c.Roundtrip("GET_TIME_MS"); err == nil {
		t.Fatal("expected a client-side timeout")
	}

	// The frame loop catches up late.
	queues.PushResponses("TIME:42")

	resp, err := c.Roundtrip("ping")
	if err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	if resp != "TIME:42" {
		t.Fatalf("orphan should answer first, got %q", resp)
	}
}

func TestServer_Reconnect(t *testing.T) {
	_, queues, name := startServer(t)
	defer startResponder(queues)()

	for i := 0; i < 3; i++ {
		c, err := Dial(name)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		resp, err := c.Roundtrip("GET_CD:1")
		c.Close()
		if err != nil {
			t.Fatalf("roundtrip %d: %v", i, err)
		}
		if resp != "OK:GET_CD:1" {
			t.Fatalf("roundtrip %d: got %q", i, resp)
		}
	}
}

func TestServer_StopUnblocksAccept(t *testing.T) {
	queues := queue.NewPair()
	var shutdown atomic.Bool
	name := testPipeName()
	srv := NewServer(name, queues, &shutdown)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	shutdown.Store(true)
	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	if _, err := Dial(name); err == nil {
		t.Fatal("dial should fail after Stop")
	}
}
