package vicp

import "testing"

func TestBuildCommandFrame(t *testing.T) {
	frame := buildCommandFrame(7, "*IDN?")

	if len(frame) != headerLen+len("*IDN?") {
		t.Fatalf("frame length = %d, want %d", len(frame), headerLen+len("*IDN?"))
	}
	if frame[0]&opEOI == 0 {
		t.Error("command frame must always set the EOI bit")
	}
	if frame[0] != 0x81 {
		t.Errorf("frame[0] = 0x%02x, want 0x81", frame[0])
	}
	if frame[1] != 1 {
		t.Errorf("protocol version = %d, want 1", frame[1])
	}
	if frame[2] != 7 {
		t.Errorf("sequence byte = %d, want 7", frame[2])
	}
	if got := string(frame[headerLen:]); got != "*IDN?" {
		t.Errorf("payload = %q, want %q", got, "*IDN?")
	}
}

func TestParseFrameHeaderEOI(t *testing.T) {
	var hdr [headerLen]byte
	hdr[0] = opData | opEOI
	hdr[1] = 1
	hdr[4], hdr[5], hdr[6], hdr[7] = 0, 0, 0, 42

	eoi, length, err := parseFrameHeader(hdr)
	if err != nil {
		t.Fatalf("parseFrameHeader: %v", err)
	}
	if !eoi {
		t.Error("expected eoi=true")
	}
	if length != 42 {
		t.Errorf("length = %d, want 42", length)
	}
}

func TestParseFrameHeaderContinuation(t *testing.T) {
	var hdr [headerLen]byte
	hdr[0] = opData // valid continuation frame: DATA set, EOI clear
	hdr[1] = 1

	eoi, _, err := parseFrameHeader(hdr)
	if err != nil {
		t.Fatalf("parseFrameHeader: %v", err)
	}
	if eoi {
		t.Error("expected eoi=false for a continuation frame")
	}
}

func TestParseFrameHeaderBadVersion(t *testing.T) {
	var hdr [headerLen]byte
	hdr[0] = opData | opEOI
	hdr[1] = 2 // unsupported version

	_, _, err := parseFrameHeader(hdr)
	if err == nil {
		t.Fatal("expected an error for an unrecognised protocol version")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Code != CodeBadHeader {
		t.Errorf("err = %v, want CodeBadHeader", err)
	}
}

func TestParseFrameHeaderBadOperationByte(t *testing.T) {
	for _, op := range []byte{0x00, 0xFF, opRemote} {
		var hdr [headerLen]byte
		hdr[0] = op
		hdr[1] = 1

		_, _, err := parseFrameHeader(hdr)
		if err == nil {
			t.Fatalf("op=0x%02x: expected an error for a malformed operation byte", op)
		}
		verr, ok := err.(*Error)
		if !ok || verr.Code != CodeBadHeader {
			t.Errorf("op=0x%02x: err = %v, want CodeBadHeader", op, err)
		}
	}
}
