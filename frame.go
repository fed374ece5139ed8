package vicp

import "encoding/binary"

// VICP frame header layout: operation byte, protocol version byte,
// sequence number byte, a reserved byte, then a 4-byte big-endian
// payload length. Eight bytes total, always sent ahead of the payload.
const headerLen = 8

// Operation bits, OR'd into header byte 0, matching COMM_HDR_OPER_* in
// the original driver's LeCroy_drv.h.
const (
	opData     byte = 0x80 // this frame carries data (vs. an interface message)
	opRemote   byte = 0x40 // message originated from a remote (not a local) context
	opLockout  byte = 0x20 // local lockout
	opClear    byte = 0x10 // device clear (unused; Non-goal)
	opSRQ      byte = 0x08 // service request (unused; Non-goal)
	opReserved byte = 0x02
	opEOI      byte = 0x01 // end of an instrument-to-controller indication
)

// maxContinuationFrames bounds how many intermediate frames
// readResponse will assemble before giving up; a well-behaved
// instrument never approaches this, but a wedged link producing
// endless non-EOI frames must not be read forever.
const maxContinuationFrames = 1000

// buildCommandFrame assembles a single-frame VICP command message:
// header marked final (EOI) with the given sequence number, followed
// by the ASCII command bytes. This mirrors the one-shot write in the
// original driver's LeCroy_Write_Command, which never splits an
// outbound command across frames.
func buildCommandFrame(seq byte, cmd string) []byte {
	buf := make([]byte, headerLen+len(cmd))
	buf[0] = opData | opEOI
	buf[1] = 1 // protocol version 1
	buf[2] = seq
	buf[3] = 0 // reserved
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(cmd)))
	copy(buf[headerLen:], cmd)
	return buf
}

// parseFrameHeader validates a received VICP header and returns
// whether this frame is the end of the response (EOI) and the
// payload length that follows it.
func parseFrameHeader(hdr [headerLen]byte) (eoi bool, length uint32, err error) {
	op := hdr[0]
	version := hdr[1]

	// Masking off the EOI bit must leave exactly opData set: any other
	// bit combination on header byte 0 is a protocol error, not a
	// legal data frame we simply don't understand.
	if op&0xFE != opData {
		return false, 0, newErr(CodeBadHeader, "unexpected VICP operation byte")
	}
	if version != 1 {
		return false, 0, newErr(CodeBadHeader, "unexpected VICP protocol version")
	}

	length = binary.BigEndian.Uint32(hdr[4:8])
	eoi = op&opEOI != 0
	return eoi, length, nil
}
