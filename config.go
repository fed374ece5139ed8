package vicp

import "time"

// Config carries the fixed tunables a Session needs at Dial time. There
// is deliberately no file- or environment-based loader: every value here
// has a workable default and the instrument side of this protocol has
// no notion of persisted client configuration, so Config is built the
// way Daedaluz-goserial's Options is — a small struct with a
// constructor, not a generic config layer.
type Config struct {
	// ConnectTimeout bounds the initial TCP connect.
	ConnectTimeout time.Duration

	// CommandTimeout bounds each Operate() write+optional read.
	CommandTimeout time.Duration

	// RecoverInterval is the supervisor's sleep between recovery
	// attempts. A value of RecoverOnce disables the background loop;
	// callers drive recovery manually via Session.RecoverOnce.
	RecoverInterval time.Duration

	// ReceiveBufferSize is the SO_RCVBUF value applied to the socket
	// after connect.
	ReceiveBufferSize int
}

// RecoverOnce, passed as Config.RecoverInterval, means "attempt
// recovery exactly once rather than running a background loop" —
// mirroring the original's LINK_CHECK_ONCE sentinel.
const RecoverOnce time.Duration = -1

// DefaultConfig returns the tunables this package has always used,
// matching the constants implicit in the original LeCroy driver: an
// 8 KiB receive buffer and a 6-second connect/read deadline, matching
// LeCroy_drv.c's fixed timeout values for an instrument that can take
// a while to arm and fire a waveform acquisition.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    6 * time.Second,
		CommandTimeout:    6 * time.Second,
		RecoverInterval:   30 * time.Second,
		ReceiveBufferSize: 8192,
	}
}
