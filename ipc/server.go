// Package ipc implements the named-pipe RPC endpoint of the bridge: one
// server goroutine, one pipe instance, one message per command in and one
// per response out.
package ipc

import (
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tliron/commonlog"

	"github.com/nathoo/wowbridge/queue"
	"github.com/nathoo/wowbridge/types"
)

var log = commonlog.GetLogger("wowbridge.ipc")

// PipeName is the canonical endpoint the controller dials.
const PipeName = `\\.\pipe\WowInjectPipe`

// BufferSize is the pipe buffer size; one message never exceeds it.
const BufferSize = 4096

// Response-wait bounds: poll the response queue 10 times at 10 ms, then
// give up on this request and move on. The controller owns its own
// timeout and retry policy.
const (
	PollInterval = 10 * time.Millisecond
	PollAttempts = 10
)

var entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)

// connID tags a connection in the debug stream so reconnects are
// distinguishable.
func connID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Server accepts one controller at a time, parses its commands into the
// request queue, and writes back responses polled from the response
// queue. Responses left over from a dropped connection are written to the
// next one; see the protocol notes.
type Server struct {
	pipeName string
	queues   *queue.Pair
	shutdown *atomic.Bool

	PollInterval time.Duration
	PollAttempts int

	ln   net.Listener
	mu   sync.Mutex
	conn net.Conn
	done chan struct{}
}

// NewServer builds a server for the given endpoint. The shutdown flag is
// shared with the rest of the bridge.
func NewServer(pipeName string, queues *queue.Pair, shutdown *atomic.Bool) *Server {
	return &Server{
		pipeName:     pipeName,
		queues:       queues,
		shutdown:     shutdown,
		PollInterval: PollInterval,
		PollAttempts: PollAttempts,
	}
}

// Start opens the pipe and launches the serve goroutine.
func (s *Server) Start() error {
	ln, err := listen(s.pipeName)
	if err != nil {
		return err
	}
	s.ln = ln
	s.done = make(chan struct{})
	log.Infof("listening on %s", s.pipeName)
	go s.serve()
	return nil
}

// Stop closes the listener and any live connection, unblocking the serve
// goroutine, and waits for it to exit. The shutdown flag must already be
// set by the caller.
func (s *Server) Stop() {
	if s.ln == nil {
		return
	}
	s.ln.Close()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	<-s.done
	log.Info("server stopped")
}

func (s *Server) serve() {
	defer close(s.done)
	for !s.shutdown.Load() {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return
			}
			log.Errorf("accept failed: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		s.handle(conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}
}

// handle runs one connection: read a command, queue it, wait bounded for
// its response, write the response, repeat. The next command is not read
// until the previous response (or its timeout) is done, which is what
// keeps responses matched to requests on this pipe.
func (s *Server) handle(conn net.Conn) {
	id := connID()
	log.Infof("client connected (conn %s)", id)
	buf := make([]byte, BufferSize)

	for !s.shutdown.Load() {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			log.Infof("client disconnected (conn %s): %v", id, err)
			return
		}

		req := Parse(buf[:n])
		log.Debugf("conn %s: %s", id, req.Kind)

		if req.Kind == types.ReqPing {
			// Answer liveness directly so ping works even when the host
			// is not rendering frames.
			s.queues.PushResponses("PONG")
		} else {
			s.queues.PushRequest(req)
		}

		resp, ok := s.queues.PollResponse(s.PollInterval, s.PollAttempts)
		if !ok {
			log.Warningf("conn %s: no response for %s within poll window", id, req.Kind)
			continue
		}

		payload := append([]byte(resp), 0)
		if _, err := conn.Write(payload); err != nil {
			log.Warningf("conn %s: write failed: %v", id, err)
			return
		}
	}
}
