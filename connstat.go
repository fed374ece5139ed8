package vicp

import (
	"net"
	"strconv"

	"github.com/epics-modules/lecroyvicp/pkg/tcpinfo"
)

// statConn wraps the session's net.Conn to snapshot kernel TCP_INFO at
// connect and at close, adapted from the teacher's wrap.go
// (conniver.Conn): that file tracked byte counts and timestamps
// per-Read/Write across arbitrary connections for a generic sockstats
// reporter, which this module's operateLocked already does at the
// VICP-frame level (see Session.bytesSent/bytesRecv); what's kept here
// is the part Session doesn't otherwise have, a before/after TCP_INFO
// pair useful for explaining why a link dropped (e.g. retransmits
// climbing right before the read that triggered failLocked).
type statConn struct {
	net.Conn
	reconnects int
	openedInfo *tcpinfo.Info
	closedInfo *tcpinfo.Info
}

func wrapStatConn(conn net.Conn, reconnects int) *statConn {
	w := &statConn{Conn: conn, reconnects: reconnects}
	w.openedInfo = gatherTCPInfo(conn)
	return w
}

func (w *statConn) Close() error {
	w.closedInfo = gatherTCPInfo(w.Conn)
	return w.Conn.Close()
}

// warnings reports notable conditions observed across the open/close
// snapshots, matching wrap.go's Warnings()/GetWarnings() duplication
// collapsed into a single method here.
func (w *statConn) warnings() []string {
	var warns []string
	if w.reconnects > 0 {
		warns = append(warns, "reconnects="+strconv.Itoa(w.reconnects))
	}
	for _, info := range []*tcpinfo.Info{w.openedInfo, w.closedInfo} {
		if info == nil || info.Retransmits == 0 {
			continue
		}
		warns = append(warns, "retransmits="+strconv.FormatUint(info.Retransmits, 10))
	}
	return warns
}

func gatherTCPInfo(conn net.Conn) *tcpinfo.Info {
	if !tcpinfo.Supported() {
		return nil
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return nil
	}
	var sysInfo *tcpinfo.SysInfo
	var sysErr error
	if err := rawConn.Control(func(fd uintptr) {
		sysInfo, sysErr = getTCPInfo(fd)
	}); err != nil || sysErr != nil {
		return nil
	}
	return sysInfo.ToInfo()
}
