package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// listenDualStack opens a non-blocking, dual-stack (v4-mapped) IPv6 TCP
// listener socket using raw syscalls, per spec.md §4.3's resource-bounds
// paragraph: SO_REUSEADDR set, IPV6_V6ONLY explicitly cleared so IPv4
// clients connecting via a v4-mapped address are accepted on the same
// socket. SOCK_CLOEXEC keeps the listener out of every RETR pipeline's
// forked children (spec.md §4.5 "children never inherit unrelated
// descriptors"). An empty ip binds the wildcard address.
func listenDualStack(ip string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("reactor: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("reactor: setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("reactor: setsockopt IPV6_V6ONLY: %w", err)
	}

	addr, err := resolveAddr6(ip)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	addr.Port = port

	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("reactor: bind: %w", err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("reactor: listen: %w", err)
	}
	return fd, nil
}

const listenBacklog = 128

// resolveAddr6 builds an IPv6 sockaddr for either the wildcard address
// (ip == "") or a literal address string.
func resolveAddr6(ip string) (*unix.SockaddrInet6, error) {
	if ip == "" {
		return &unix.SockaddrInet6{}, nil
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("reactor: invalid listen address %q", ip)
	}
	v6 := parsed.To16()
	if v6 == nil {
		return nil, fmt.Errorf("reactor: address %q is not representable as IPv6", ip)
	}
	var addr unix.SockaddrInet6
	copy(addr.Addr[:], v6)
	return &addr, nil
}

// acceptNonblocking accepts one pending connection on listenerFD, setting
// the new socket non-blocking (spec.md §4.3: "accepted sockets inherit
// non-blocking mode") and close-on-exec, so one client's fd never leaks
// into another client's RETR pipeline children (spec.md §4.5), and
// returns its fd and the peer's IP as a string.
func acceptNonblocking(listenerFD int) (int, string, error) {
	nfd, sa, err := unix.Accept4(listenerFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, "", err
	}
	return nfd, peerIPString(sa), nil
}

func peerIPString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(a.Addr[:])
		return ip.String()
	case *unix.SockaddrInet6:
		ip := net.IP(a.Addr[:])
		return ip.String()
	default:
		return ""
	}
}

// ListenerPort reports the local port a listener fd is bound to, useful
// when AddListener was called with port 0 to let the kernel assign one
// (tests only; production config always names an explicit port).
func ListenerPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet6:
		return a.Port, nil
	case *unix.SockaddrInet4:
		return a.Port, nil
	default:
		return 0, fmt.Errorf("reactor: unexpected sockaddr type %T", sa)
	}
}
