package vicp

import (
	"encoding/binary"
	"net"
	"testing"
	"time"
)

// serverFrame builds a raw VICP response frame the way an instrument
// would, independent of buildCommandFrame (which only ever builds
// EOI-marked outbound command frames).
func serverFrame(eoi bool, payload string) []byte {
	buf := make([]byte, headerLen+len(payload))
	buf[0] = opData
	if eoi {
		buf[0] |= opEOI
	}
	buf[1] = 1
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[headerLen:], payload)
	return buf
}

func TestReadResponseSingleFrame(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go func() {
		serverConn.Write(serverFrame(true, "LECROY_2_3"))
		serverConn.Close()
	}()

	payload, err := readResponse(clientConn, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if string(payload) != "LECROY_2_3" {
		t.Errorf("payload = %q, want %q", payload, "LECROY_2_3")
	}
}

func TestReadResponseMultiFrame(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go func() {
		serverConn.Write(serverFrame(false, "part1,"))
		serverConn.Write(serverFrame(false, "part2,"))
		serverConn.Write(serverFrame(true, "part3"))
		serverConn.Close()
	}()

	payload, err := readResponse(clientConn, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if want := "part1,part2,part3"; string(payload) != want {
		t.Errorf("payload = %q, want %q", payload, want)
	}
}

func TestReadResponseFrameLimit(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go func() {
		defer serverConn.Close()
		for i := 0; i < maxContinuationFrames+1; i++ {
			if _, err := serverConn.Write(serverFrame(false, "x")); err != nil {
				return
			}
		}
	}()

	_, err := readResponse(clientConn, time.Now().Add(5*time.Second))
	if err == nil {
		t.Fatal("expected a frame-limit error")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Code != CodeFrameLimit {
		t.Errorf("err = %v, want CodeFrameLimit", err)
	}
}

func TestWriteAllAndReadFullRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	frame := buildCommandFrame(1, "*IDN?")
	go func() {
		_ = writeAll(clientConn, frame, time.Now().Add(2*time.Second))
	}()

	buf := make([]byte, len(frame))
	if err := readFull(serverConn, buf, time.Now().Add(2*time.Second)); err != nil {
		t.Fatalf("readFull: %v", err)
	}
	if string(buf) != string(frame) {
		t.Errorf("round-tripped frame mismatch")
	}
}

func TestReadFullTimeout(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	buf := make([]byte, headerLen)
	err := readFull(serverConn, buf, time.Now().Add(50*time.Millisecond))
	if err == nil {
		t.Fatal("expected a timeout error when nothing is ever written")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Code != CodeReadTimeout {
		t.Errorf("err = %v, want CodeReadTimeout", err)
	}
}

func TestDialConnectionRefused(t *testing.T) {
	// dial() always targets vicpPort (1861); nothing in this test
	// environment listens there, so the connect should fail fast with
	// either an explicit refusal or our own classification of one.
	_, dialErr := dial("127.0.0.1", 2*time.Second)
	if dialErr == nil {
		t.Skip("something is listening on 127.0.0.1:1861 in this environment")
	}
	verr, ok := dialErr.(*Error)
	if !ok {
		t.Fatalf("dialErr = %v, want *Error", dialErr)
	}
	if verr.Code != CodeConnRefused && verr.Code != CodeConnTimeout {
		t.Errorf("Code = %v, want CodeConnRefused or CodeConnTimeout", verr.Code)
	}
}
