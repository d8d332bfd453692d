// Package reactor implements the single-threaded, poll-based I/O event
// loop (spec.md §4.3): it multiplexes listening sockets, client sockets,
// and streamed-file read ends on one goroutine using golang.org/x/sys/unix,
// and drains each client's outbound queue (internal/queue) on writability.
package reactor

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/infodancer/popd/internal/metrics"
	"github.com/infodancer/popd/internal/queue"
)

// recvChunk and fileChunk are the fixed per-event read sizes spec.md
// §4.3 step 4 (client sockets, 1024 bytes) and §4.2 (file sources, 512
// bytes) specify.
const (
	recvChunk = 1024
	fileChunk = 512
)

// Reactor owns the descriptor tables and runs the single dispatch loop.
// The mutex models spec.md §5's "one exclusive lock acquired for the
// duration of one dispatch pass" — on a single goroutine it is purely
// defensive against callers that touch reactor state from outside the
// loop goroutine.
type Reactor struct {
	mu        sync.Mutex
	listeners map[int]*listenerEntry
	sockets   map[int]*socketEntry
	files     map[int]*fileEntry

	done      atomic.Bool
	logger    *slog.Logger
	collector metrics.Collector
}

// New creates an empty Reactor. collector may be a *metrics.NoopCollector
// when statistics are disabled.
func New(logger *slog.Logger, collector metrics.Collector) *Reactor {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	return &Reactor{
		listeners: make(map[int]*listenerEntry),
		sockets:   make(map[int]*socketEntry),
		files:     make(map[int]*fileEntry),
		logger:    logger,
		collector: collector,
	}
}

// AddListener opens a dual-stack, non-blocking listening socket bound to
// ip:port and registers handler to service every connection accepted on
// it. Passing "" for ip binds the wildcard address.
func (r *Reactor) AddListener(ip string, port int, handler Handler) (fd int, err error) {
	fd, err = listenDualStack(ip, port)
	if err != nil {
		return -1, err
	}
	r.mu.Lock()
	r.listeners[fd] = &listenerEntry{fd: fd, handler: handler}
	r.mu.Unlock()
	return fd, nil
}

// Stop requests that Run return after completing its current iteration.
func (r *Reactor) Stop() {
	r.done.Store(true)
}

// Enqueue appends data to fd's outbound queue, per spec.md §4.2
// enqueue_bytes. Returns false if fd has no registered socket.
func (r *Reactor) Enqueue(fd int, data []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sockets[fd]
	if !ok {
		return false
	}
	s.queue.Enqueue(data)
	return true
}

// PushGracefulClose marks fd's queue frozen and appends an Esc terminator
// (spec.md §4.2 push_graceful_close). If the queue was already empty the
// socket is closed immediately rather than waiting for a writability
// event that may never come.
func (r *Reactor) PushGracefulClose(fd int) {
	r.mu.Lock()
	s, ok := r.sockets[fd]
	if !ok {
		r.mu.Unlock()
		return
	}
	immediate := s.queue.PushGracefulClose()
	s.closing = true
	if !immediate {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.closeSocket(fd, GracefulClose)
}

// StreamFile registers sourceFD as a FILE descriptor feeding a new
// Splitter node on clientFD's queue (spec.md §4.2 attach_file). onDrain
// is invoked exactly once, when sourceFD reaches EOF or errors or when
// clientFD is closed first; the caller, not the reactor, owns closing the
// underlying file handle.
func (r *Reactor) StreamFile(clientFD, sourceFD int, onDrain func(error)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sockets[clientFD]
	if !ok {
		return false
	}
	s.queue.AttachFile(sourceFD, onDrain)
	r.files[sourceFD] = &fileEntry{fd: sourceFD, ownerFD: clientFD}
	return true
}

// Run executes the poll/dispatch loop until Stop is called or a SIGINT/
// SIGTERM is received (spec.md §4.3 "Cancellation and shutdown"). It
// returns nil on a clean shutdown.
func (r *Reactor) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for !r.done.Load() {
		select {
		case <-sigCh:
			r.done.Store(true)
			continue
		default:
		}

		fds, kinds := r.buildPollSet()
		if len(fds) == 0 {
			continue
		}

		n, err := unix.Poll(fds, pollTimeoutMillis)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		r.dispatch(fds, kinds)
	}
	return nil
}

// pollTimeoutMillis bounds each poll call so the loop rechecks the done
// flag and drains the signal channel even with no ready descriptors.
const pollTimeoutMillis = 250

type descKind int

const (
	kindListener descKind = iota
	kindSocket
	kindFile
)

// buildPollSet snapshots the current descriptor tables into the slice
// shape unix.Poll requires. Sockets request POLLOUT only while they have
// something pending to write, per spec.md §4.2's "reactor is told to
// watch fd for writability" signal.
func (r *Reactor) buildPollSet() ([]unix.PollFd, []descKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fds := make([]unix.PollFd, 0, len(r.listeners)+len(r.sockets)+len(r.files))
	kinds := make([]descKind, 0, cap(fds))

	for fd := range r.listeners {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		kinds = append(kinds, kindListener)
	}
	for fd, s := range r.sockets {
		events := int16(unix.POLLIN)
		if !s.queue.Empty() || s.closing {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
		kinds = append(kinds, kindSocket)
	}
	for fd := range r.files {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		kinds = append(kinds, kindFile)
	}
	return fds, kinds
}

// dispatch services every ready descriptor in spec.md §4.3's mandated
// order: listeners, then POLLERR closes, then file production, then
// client reads, then client writes.
func (r *Reactor) dispatch(fds []unix.PollFd, kinds []descKind) {
	for i, pfd := range fds {
		if kinds[i] != kindListener || pfd.Revents&unix.POLLIN == 0 {
			continue
		}
		r.dispatchAccept(int(pfd.Fd))
	}

	for i, pfd := range fds {
		if kinds[i] != kindSocket || pfd.Revents&unix.POLLERR == 0 {
			continue
		}
		r.closeSocket(int(pfd.Fd), ConnectionError)
	}

	for i, pfd := range fds {
		if kinds[i] != kindFile {
			continue
		}
		if pfd.Revents&(unix.POLLIN|unix.POLLERR) == 0 {
			continue
		}
		r.dispatchFileReadable(int(pfd.Fd))
	}

	for i, pfd := range fds {
		if kinds[i] != kindSocket || pfd.Revents&unix.POLLIN == 0 {
			continue
		}
		r.dispatchClientReadable(int(pfd.Fd))
	}

	for i, pfd := range fds {
		if kinds[i] != kindSocket || pfd.Revents&unix.POLLOUT == 0 {
			continue
		}
		r.dispatchClientWritable(int(pfd.Fd))
	}
}

func (r *Reactor) dispatchAccept(listenerFD int) {
	r.mu.Lock()
	le, ok := r.listeners[listenerFD]
	r.mu.Unlock()
	if !ok {
		return
	}

	cfd, peerIP, err := acceptNonblocking(listenerFD)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return
		}
		r.logger.Warn("accept failed", "listener_fd", listenerFD, "err", err)
		return
	}

	r.mu.Lock()
	r.sockets[cfd] = &socketEntry{
		fd:         cfd,
		peerIP:     peerIP,
		listenerFD: listenerFD,
		handler:    le.handler,
		queue:      queue.New(),
	}
	r.mu.Unlock()

	result := le.handler.OnConnection(cfd, peerIP, listenerFD)
	if result != KeepOpen {
		r.closeSocket(cfd, ConnectionError)
		return
	}
	r.collector.Connect(peerIP, "")
}

func (r *Reactor) dispatchFileReadable(fd int) {
	r.mu.Lock()
	fe, ok := r.files[fd]
	var owner *socketEntry
	if ok {
		owner = r.sockets[fe.ownerFD]
	}
	r.mu.Unlock()
	if !ok || owner == nil {
		return
	}

	buf := make([]byte, fileChunk)
	n, err := unix.Read(fd, buf)
	switch {
	case err != nil && errors.Is(err, unix.EAGAIN):
		return
	case err != nil:
		r.drainFile(fd, owner, err)
	case n == 0:
		r.drainFile(fd, owner, nil)
	default:
		owner.queue.FeedSplitterSource(fd, buf[:n])
	}
}

func (r *Reactor) drainFile(fd int, owner *socketEntry, err error) {
	owner.queue.MarkSplitterDrained(fd, err)
	r.mu.Lock()
	delete(r.files, fd)
	r.mu.Unlock()
}

func (r *Reactor) dispatchClientReadable(fd int) {
	r.mu.Lock()
	s, ok := r.sockets[fd]
	r.mu.Unlock()
	if !ok {
		return
	}

	buf := make([]byte, recvChunk)
	n, err := unix.Read(fd, buf)
	switch {
	case err != nil && errors.Is(err, unix.EAGAIN):
		return
	case err != nil || n == 0:
		r.closeSocket(fd, ConnectionError)
	default:
		result := s.handler.OnMessage(fd, buf[:n], s.listenerFD, s.peerIP)
		r.collector.Bytes(s.peerIP, "", metrics.Inbound, int64(n))
		switch result {
		case Close:
			r.PushGracefulClose(fd)
		case ConnError:
			r.closeSocket(fd, ConnectionError)
		}
	}
}

func (r *Reactor) dispatchClientWritable(fd int) {
	r.mu.Lock()
	s, ok := r.sockets[fd]
	r.mu.Unlock()
	if !ok {
		return
	}

	res := s.queue.Dequeue(func(b []byte) (int, error) {
		n, err := unix.Write(fd, b)
		if n > 0 {
			r.collector.Bytes(s.peerIP, "", metrics.Outbound, int64(n))
		}
		return n, err
	})

	switch res {
	case queue.CloseConnection:
		r.closeSocket(fd, GracefulClose)
	case queue.ConnectionError:
		r.closeSocket(fd, ConnectionError)
	}
}

// closeSocket runs the on_close contract (spec.md §4.3): the handler is
// invoked once with fd still open, and only after it returns does the
// reactor actually close and remove the descriptor.
func (r *Reactor) closeSocket(fd int, reason CloseReason) {
	r.mu.Lock()
	s, ok := r.sockets[fd]
	var orphaned []int
	if ok {
		delete(r.sockets, fd)
		for ffd, fe := range r.files {
			if fe.ownerFD == fd {
				orphaned = append(orphaned, ffd)
				delete(r.files, ffd)
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	// File sources still streaming into this client get their drain
	// callback now, so their owners can release the source descriptor.
	for _, ffd := range orphaned {
		s.queue.MarkSplitterDrained(ffd, errors.New("reactor: client closed before file source drained"))
	}

	s.handler.OnClose(fd, reason, s.listenerFD)
	r.collector.Disconnect(s.peerIP, "")
	unix.Close(fd)
}
