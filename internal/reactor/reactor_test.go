package reactor

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// echoHandler answers every line with "+OK <line>\r\n" and closes
// gracefully on QUIT, exercising plain accept/command/response, graceful
// close after drain, and S5 (a second connection's replies are not
// delayed by the first).
type echoHandler struct {
	r   *Reactor
	buf map[int]*strings.Builder
}

func newEchoHandler(r *Reactor) *echoHandler {
	return &echoHandler{r: r, buf: make(map[int]*strings.Builder)}
}

func (h *echoHandler) OnConnection(fd int, peerIP string, listenerFD int) Result {
	h.buf[fd] = &strings.Builder{}
	h.r.Enqueue(fd, []byte("+OK ready\r\n"))
	return KeepOpen
}

func (h *echoHandler) OnMessage(fd int, data []byte, listenerFD int, peerIP string) Result {
	b := h.buf[fd]
	b.Write(data)
	result := KeepOpen
	for {
		s := b.String()
		idx := strings.Index(s, "\r\n")
		if idx < 0 {
			break
		}
		line := s[:idx]
		rest := s[idx+2:]
		b.Reset()
		b.WriteString(rest)

		if line == "QUIT" {
			h.r.Enqueue(fd, []byte("+OK bye\r\n"))
			result = Close
			continue
		}
		h.r.Enqueue(fd, []byte(fmt.Sprintf("+OK %s\r\n", line)))
	}
	return result
}

func (h *echoHandler) OnClose(fd int, reason CloseReason, listenerFD int) {
	delete(h.buf, fd)
}

func startTestReactor(t *testing.T) (*Reactor, int) {
	t.Helper()
	r := New(nil, nil)
	h := newEchoHandler(r)
	fd, err := r.AddListener("", 0, h)
	if err != nil {
		t.Fatalf("AddListener: %v", err)
	}
	port, err := ListenerPort(fd)
	if err != nil {
		t.Fatalf("ListenerPort: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	t.Cleanup(func() {
		r.Stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("reactor did not stop in time")
		}
	})
	return r, port
}

func dialAndGreet(t *testing.T, port int) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.SetDeadline(time.Now().Add(3 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if line != "+OK ready\r\n" {
		t.Fatalf("greeting = %q", line)
	}
	return conn
}

func TestAcceptAndEcho(t *testing.T) {
	_, port := startTestReactor(t)
	conn := dialAndGreet(t, port)
	defer conn.Close()

	r := bufio.NewReader(conn)
	if _, err := conn.Write([]byte("HELLO\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "+OK HELLO\r\n" {
		t.Fatalf("got %q", line)
	}
}

func TestGracefulCloseDrainsBeforeClosing(t *testing.T) {
	_, port := startTestReactor(t)
	conn := dialAndGreet(t, port)
	defer conn.Close()

	r := bufio.NewReader(conn)
	if _, err := conn.Write([]byte("QUIT\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read bye: %v", err)
	}
	if line != "+OK bye\r\n" {
		t.Fatalf("got %q", line)
	}
	if _, err := r.ReadString('\n'); err == nil {
		t.Fatal("expected EOF after graceful close")
	}
}

// TestSecondConnectionNotDelayed exercises S5: a second client's replies
// keep arriving promptly while a first client is mid-conversation.
func TestSecondConnectionNotDelayed(t *testing.T) {
	_, port := startTestReactor(t)
	connA := dialAndGreet(t, port)
	defer connA.Close()
	connB := dialAndGreet(t, port)
	defer connB.Close()

	readerB := bufio.NewReader(connB)
	for i := 0; i < 5; i++ {
		if _, err := connB.Write([]byte("NOOP\r\n")); err != nil {
			t.Fatalf("write B: %v", err)
		}
		line, err := readerB.ReadString('\n')
		if err != nil {
			t.Fatalf("read B: %v", err)
		}
		if line != "+OK NOOP\r\n" {
			t.Fatalf("got %q", line)
		}
	}

	readerA := bufio.NewReader(connA)
	if _, err := connA.Write([]byte("STAT\r\n")); err != nil {
		t.Fatalf("write A: %v", err)
	}
	line, err := readerA.ReadString('\n')
	if err != nil {
		t.Fatalf("read A: %v", err)
	}
	if line != "+OK STAT\r\n" {
		t.Fatalf("got %q", line)
	}
}
