package vicp

import (
	"github.com/epics-modules/lecroyvicp/pkg/tcpinfo"
)

// LinkTCPInfo reports kernel-level TCP statistics (round-trip time,
// retransmission counters, window sizes) for the session's current
// connection. A link supervisor that keeps failing to recover a scope
// benefits from telling "the network is retransmitting" apart from
// "the instrument stopped answering": this is exactly the question
// pkg/tcpinfo was built to answer, originally for generic per-connection
// reporting (sockstats.Conn/wrap.Conn) and now scoped to one VICP
// session's socket. Returns nil, nil when the platform doesn't support
// TCP_INFO retrieval (see tcpinfo.Supported) or the link is currently
// down.
func (s *Session) LinkTCPInfo() (*tcpinfo.Info, error) {
	s.sessionMu.Lock()
	stat := s.connStat
	if s.conn == nil {
		stat = nil
	}
	s.sessionMu.Unlock()

	if stat == nil || !tcpinfo.Supported() {
		return nil, nil
	}

	info := gatherTCPInfo(stat.Conn)
	if info == nil {
		return nil, wrapErr(CodeReadFailed, "TCP_INFO retrieval failed", nil)
	}
	return info, nil
}
