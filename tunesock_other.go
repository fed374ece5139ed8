//go:build !linux

package vicp

import "net"

// tuneSocket falls back to the portable net.TCPConn tunables on
// platforms where we haven't wired a raw-fd path (netfd.GetFdFromConn
// is POSIX-oriented; Windows/BSD would need their own syscall surface
// that no example in this codebase's lineage exercises). The effect on
// the wire is the same as the linux build's setsockopt calls.
func tuneSocket(conn net.Conn, rcvBuf int) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		return wrapErr(CodeWriteFailed, "set no-delay", err)
	}
	if err := tcpConn.SetReadBuffer(rcvBuf); err != nil {
		return wrapErr(CodeWriteFailed, "set read buffer", err)
	}
	return nil
}
