package vicp

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeScope is a minimal VICP server good enough to exercise Session's
// connect -> init-string -> TMPL? -> IDN? -> channel-probe sequence: it
// reads one framed command at a time and replies with a canned response
// keyed on a substring match, the same style of fixture the teacher's own
// network-facing tests use against a local listener rather than mocking
// net.Conn itself.
type fakeScope struct {
	listener net.Listener
	channels int

	mu       sync.Mutex
	commands []string
}

// received returns every command string the fake scope has read so
// far, for tests that need to assert on the exact SCPI sent.
func (fs *fakeScope) received() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.commands...)
}

func newFakeScope(t *testing.T, channels int) *fakeScope {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:1861")
	if err != nil {
		t.Skipf("could not bind 127.0.0.1:1861 for the fake scope: %v", err)
	}
	fs := &fakeScope{listener: l, channels: channels}
	go fs.serve(t)
	return fs
}

func (fs *fakeScope) Close() { fs.listener.Close() }

func (fs *fakeScope) serve(t *testing.T) {
	conn, err := fs.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		var hdr [headerLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return
		}
		eoi, length, err := parseFrameHeader(hdr)
		_ = eoi
		if err != nil {
			return
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return
		}
		cmd := string(payload)
		fs.mu.Lock()
		fs.commands = append(fs.commands, cmd)
		fs.mu.Unlock()

		var resp string
		switch {
		case strings.HasPrefix(cmd, "CFMT"):
			continue // init string is a command, no response expected
		case strings.HasPrefix(cmd, tmplQuery):
			resp = tmplExpected
		case strings.HasPrefix(cmd, idnQuery):
			resp = "LECROY,WAVESURFER,LCRY1234,1.0.0"
		case strings.Contains(cmd, "TRA?"):
			// One ON per probed channel, semicolon-joined, matching
			// probeChannelStateLocked's expected field count.
			n := strings.Count(cmd, "TRA?")
			fields := make([]string, n)
			for i := range fields {
				fields[i] = "ON"
			}
			resp = strings.Join(fields, ";")
		case strings.Contains(cmd, "*RST"):
			continue
		default:
			resp = "OK"
		}

		frame := serverFrame(true, resp)
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func TestDialAndOperate(t *testing.T) {
	scope := newFakeScope(t, 4)
	defer scope.Close()

	cfg := DefaultConfig()
	cfg.ConnectTimeout = 2 * time.Second
	cfg.CommandTimeout = 2 * time.Second

	session, err := Dial("127.0.0.1", 4, cfg, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer session.Close()

	if session.LinkState() != LinkOK {
		t.Fatalf("LinkState() = %v, want LinkOK (lastError=%v)", session.LinkState(), session.LastError())
	}
	if got := session.Model(); got != "LECROY,WAVESURFER,LCRY1234,1.0.0" {
		t.Errorf("Model() = %q", got)
	}

	enabled, err := session.ChannelEnabled(1)
	if err != nil {
		t.Fatalf("ChannelEnabled: %v", err)
	}
	if !enabled {
		t.Error("expected channel 1 to be reported enabled by the fake scope")
	}

	resp, err := session.Operate("*RST", false)
	if err != nil {
		t.Fatalf("Operate(*RST): %v", err)
	}
	if resp != "" {
		t.Errorf("Operate with query=false returned %q, want empty", resp)
	}
}

func TestRecoverOnceNoopWhenLinkOK(t *testing.T) {
	scope := newFakeScope(t, 4)
	defer scope.Close()

	session, err := Dial("127.0.0.1", 4, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer session.Close()

	if err := session.RecoverOnce(); err != nil {
		t.Errorf("RecoverOnce on a healthy link returned %v, want nil", err)
	}
}

func TestDialRejectsBadChannelCount(t *testing.T) {
	if _, err := Dial("127.0.0.1", 3, DefaultConfig(), nil); err == nil {
		t.Fatal("expected an error for an unsupported channel count")
	}
}

func TestDialRejectsBadIP(t *testing.T) {
	if _, err := Dial("not-an-ip", 4, DefaultConfig(), nil); err == nil {
		t.Fatal("expected an error for a malformed IP address")
	}
}

func TestValidateChannelTwoChannelScope(t *testing.T) {
	s := &Session{channels: 2}
	for _, ch := range []int{1, 2, 5, 6} {
		if err := s.validateChannel(ch, false); err != nil {
			t.Errorf("validateChannel(%d) on a 2-channel scope: %v", ch, err)
		}
	}
	for _, ch := range []int{3, 4, 7, 8} {
		if err := s.validateChannel(ch, false); err == nil {
			t.Errorf("validateChannel(%d) on a 2-channel scope should have failed", ch)
		}
	}
}

func TestOpResetClearsChannelEnabledCache(t *testing.T) {
	scope := newFakeScope(t, 4)
	defer scope.Close()

	session, err := Dial("127.0.0.1", 4, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer session.Close()

	if _, err := session.Ioctl(0, OpReset, nil); err != nil {
		t.Fatalf("Ioctl(OpReset): %v", err)
	}

	want := [8]bool{true, true, false, false, false, false, false, false}
	for ch := 1; ch <= 8; ch++ {
		got, err := session.ChannelEnabled(ch)
		if err != nil {
			t.Fatalf("ChannelEnabled(%d): %v", ch, err)
		}
		if got != want[ch-1] {
			t.Errorf("ChannelEnabled(%d) after reset = %v, want %v", ch, got, want[ch-1])
		}
	}
}

func TestOpSetVoltDivRejectsNonSignalChannel(t *testing.T) {
	scope := newFakeScope(t, 4)
	defer scope.Close()

	session, err := Dial("127.0.0.1", 4, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer session.Close()

	_, err = session.Ioctl(5, OpSetVoltDiv, 0.5) // TA: a trace-function slot, not a signal channel
	if err == nil {
		t.Fatal("expected an error setting VDIV on channel 5 (TA)")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Code != CodeVDivWrongChannel {
		t.Errorf("err = %v, want CodeVDivWrongChannel", err)
	}

	if _, err := session.Ioctl(1, OpSetVoltDiv, 0.5); err != nil {
		t.Errorf("Ioctl(OpSetVoltDiv) on channel 1: %v", err)
	}
}

func TestOpSetTrgSrcSendsFullSuffix(t *testing.T) {
	scope := newFakeScope(t, 4)
	defer scope.Close()

	session, err := Dial("127.0.0.1", 4, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer session.Close()

	if _, err := session.Ioctl(0, OpSetTrgSrc, "C1:"); err != nil {
		t.Fatalf("Ioctl(OpSetTrgSrc): %v", err)
	}

	var found bool
	for _, cmd := range scope.received() {
		if cmd == "TRSE EDGE,SR,C1:,HT,OFF" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("commands sent = %v, want one of them to be %q", scope.received(), "TRSE EDGE,SR,C1:,HT,OFF")
	}
}
