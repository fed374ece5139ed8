package metrics

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/epics-modules/lecroyvicp"
)

// fakeScope answers just enough of the VICP init sequence for
// vicp.Dial to succeed, mirroring the fixture in the vicp package's own
// session_test.go but kept self-contained here since that file lives in
// an internal test build.
func startFakeScope(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:1861")
	if err != nil {
		t.Skipf("could not bind 127.0.0.1:1861 for the fake scope: %v", err)
	}
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			var hdr [8]byte
			if _, err := io.ReadFull(r, hdr[:]); err != nil {
				return
			}
			length := binary.BigEndian.Uint32(hdr[4:8])
			payload := make([]byte, length)
			if _, err := io.ReadFull(r, payload); err != nil {
				return
			}
			cmd := string(payload)
			var resp string
			switch {
			case strings.HasPrefix(cmd, "CFMT"):
				continue
			case strings.HasPrefix(cmd, "TMPL?"):
				resp = "LECROY_2_3"
			case strings.HasPrefix(cmd, "*IDN?"):
				resp = "LECROY,WAVESURFER,LCRY1234,1.0.0"
			case strings.Contains(cmd, "TRA?"):
				n := strings.Count(cmd, "TRA?")
				fields := make([]string, n)
				for i := range fields {
					fields[i] = "ON"
				}
				resp = strings.Join(fields, ";")
			default:
				resp = "OK"
			}
			frame := make([]byte, 8+len(resp))
			frame[0] = 0x81
			frame[1] = 1
			binary.BigEndian.PutUint32(frame[4:8], uint32(len(resp)))
			copy(frame[8:], resp)
			conn.Write(frame)
		}
	}()
	return l
}

func TestSessionCollectorReportsLinkState(t *testing.T) {
	l := startFakeScope(t)
	defer l.Close()

	cfg := vicp.DefaultConfig()
	cfg.ConnectTimeout = 2 * time.Second
	cfg.CommandTimeout = 2 * time.Second

	session, err := vicp.Dial("127.0.0.1", 4, cfg, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer session.Close()

	collector := NewSessionCollector([]string{"address"})
	collector.Add(session, []string{"127.0.0.1"})

	expected := `
# HELP vicp_link_state Current VICP link state (0=down,1=ok,2=recovering,3=unsupported).
# TYPE vicp_link_state gauge
vicp_link_state{address="127.0.0.1"} 1
`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "vicp_link_state"); err != nil {
		t.Errorf("unexpected collected metrics: %v", err)
	}

	collector.Remove(session)
	if err := testutil.CollectAndCompare(collector, strings.NewReader(""), "vicp_link_state"); err != nil {
		t.Errorf("expected no metrics after Remove: %v", err)
	}
}

func TestNewSessionCollectorDescribe(t *testing.T) {
	collector := NewSessionCollector([]string{"instrument"})
	ch := make(chan *prometheus.Desc, 10)
	collector.Describe(ch)
	close(ch)

	count := 0
	for range ch {
		count++
	}
	if count != 5 {
		t.Errorf("Describe emitted %d descriptors, want 5", count)
	}
}
