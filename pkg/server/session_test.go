package server

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NicolasHaas/staffchat/pkg/directory"
	"github.com/NicolasHaas/staffchat/pkg/protocol"
)

// recordingConn captures writes and flags any two overlapping Write calls.
type recordingConn struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	writes  int
	inWrite atomic.Bool
	overlap atomic.Bool
}

func (c *recordingConn) Write(p []byte) (int, error) {
	if !c.inWrite.CompareAndSwap(false, true) {
		c.overlap.Store(true)
	}
	time.Sleep(100 * time.Microsecond) // widen the overlap window
	c.mu.Lock()
	c.buf.Write(p)
	c.writes++
	c.mu.Unlock()
	c.inWrite.Store(false)
	return len(p), nil
}

func (c *recordingConn) Read(_ []byte) (int, error)   { return 0, io.EOF }
func (c *recordingConn) Close() error                 { return nil }
func (c *recordingConn) LocalAddr() net.Addr          { return &net.IPAddr{} }
func (c *recordingConn) RemoteAddr() net.Addr         { return &net.IPAddr{} }
func (c *recordingConn) SetDeadline(time.Time) error  { return nil }
func (c *recordingConn) SetReadDeadline(time.Time) error  { return nil }
func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func newIdleSession(t *testing.T, conn net.Conn) *ClientSession {
	t.Helper()
	dir, err := directory.New(directory.NewMemoryStore())
	if err != nil {
		t.Fatalf("directory.New: %v", err)
	}
	t.Cleanup(func() { _ = dir.Close() })
	srv := New(DefaultConfig(), Dependencies{Directory: dir})
	return newClientSession(conn, srv)
}

func waitDrained(t *testing.T, s *ClientSession) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.wmu.Lock()
		idle := !s.draining && len(s.queue) == 0
		s.wmu.Unlock()
		if idle {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("write queue did not drain")
		}
		time.Sleep(time.Millisecond)
	}
}

// Frames enqueued concurrently from many goroutines must reach the socket
// one at a time, whole, and FIFO per enqueuer.
func TestSessionWriteQueueSingleWriter(t *testing.T) {
	conn := &recordingConn{}
	s := newIdleSession(t, conn)

	const senders = 8
	const perSender = 25

	var wg sync.WaitGroup
	for g := 0; g < senders; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				s.send(&protocol.Frame{Deliver: &protocol.Deliver{
					From:      fmt.Sprintf("sender-%d", g),
					Text:      fmt.Sprintf("%d", i),
					Timestamp: int64(i),
				}})
			}
		}(g)
	}
	wg.Wait()
	waitDrained(t, s)

	if conn.overlap.Load() {
		t.Fatal("two writes were in flight concurrently")
	}
	if conn.writes != senders*perSender {
		t.Fatalf("writes: got %d, want %d (one per frame)", conn.writes, senders*perSender)
	}

	// The byte stream must decode into exactly the enqueued frames, with each
	// sender's frames in enqueue order.
	dec := protocol.NewDecoder()
	frames, err := dec.Feed(conn.buf.Bytes())
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != senders*perSender {
		t.Fatalf("decoded %d frames, want %d", len(frames), senders*perSender)
	}

	next := make(map[string]int64)
	for _, f := range frames {
		if f.Deliver == nil {
			t.Fatalf("unexpected frame kind %s", f.Kind())
		}
		if f.Deliver.Timestamp != next[f.Deliver.From] {
			t.Fatalf("%s out of order: got seq %d, want %d",
				f.Deliver.From, f.Deliver.Timestamp, next[f.Deliver.From])
		}
		next[f.Deliver.From]++
	}
}

func TestSessionEnqueueAfterCloseIsDropped(t *testing.T) {
	conn := &recordingConn{}
	s := newIdleSession(t, conn)

	s.close()
	s.send(&protocol.Frame{OK: &protocol.OK{Op: "x"}})
	waitDrained(t, s)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.writes != 0 {
		t.Fatalf("writes after close: got %d, want 0", conn.writes)
	}
}
