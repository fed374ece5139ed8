//go:build linux

package vicp

import (
	"net"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// tuneSocket applies the same tunables the original driver set with raw
// setsockopt() calls in LeCroy_Init: TCP_NODELAY (scope responses are
// small and latency-sensitive, Nagle buys nothing here) and a receive
// buffer sized for a full VICP frame plus header so a single read
// syscall can usually drain one frame.
func tuneSocket(conn net.Conn, rcvBuf int) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	fd := netfd.GetFdFromConn(tcpConn)
	if fd < 0 {
		return newErr(CodeWriteFailed, "could not recover file descriptor for socket tuning")
	}

	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return wrapErr(CodeWriteFailed, "setsockopt TCP_NODELAY", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBuf); err != nil {
		return wrapErr(CodeWriteFailed, "setsockopt SO_RCVBUF", err)
	}
	return nil
}
