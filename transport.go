package vicp

import (
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"
)

const vicpPort = 1861

// dial performs a bounded-time TCP connect to the instrument, classifying
// the failure mode the way spec.md's boundary behaviours require: a
// connection actively refused by the peer is distinguished from one that
// simply never completed in time. The original driver
// (connectWithTimeout/LeCroy_Init in LeCroy_drv.c) does this with a
// non-blocking socket and select(); net.DialTimeout gives the same
// bounded-wait semantics without needing to reach for raw syscalls here.
func dial(ip string, timeout time.Duration) (net.Conn, error) {
	addr := net.JoinHostPort(ip, strconv.Itoa(vicpPort))

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err == nil {
		return conn, nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil, wrapErr(CodeConnTimeout, "connect timed out", err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return nil, wrapErr(CodeConnRefused, "connection refused", err)
	}
	// Anything else (host unreachable, DNS failure, etc.) is treated the
	// same as an explicit refusal: the peer is not answering on this
	// port right now, which the session models as Unsupported rather
	// than a transient Down condition worth a tight recovery loop.
	return nil, wrapErr(CodeConnRefused, "connect failed", err)
}

// readFull reads exactly len(buf) bytes before the deadline, matching
// the original driver's read loop in LeCroy_Read_Socket which keeps
// calling read() until the requested length has arrived or a
// select()-driven timeout fires.
func readFull(conn net.Conn, buf []byte, deadline time.Time) error {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return wrapErr(CodeReadFailed, "set read deadline", err)
	}
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return wrapErr(CodeReadTimeout, "read deadline exceeded", err)
			}
			return wrapErr(CodeReadFailed, "read failed", err)
		}
	}
	return nil
}

// writeAll writes the whole buffer before the deadline, matching the
// original's single write() call in LeCroy_Write_Command (which treats
// any short write as fatal to the link).
func writeAll(conn net.Conn, buf []byte, deadline time.Time) error {
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return wrapErr(CodeWriteFailed, "set write deadline", err)
	}
	total := 0
	for total < len(buf) {
		n, err := conn.Write(buf[total:])
		total += n
		if err != nil {
			return wrapErr(CodeWriteFailed, "write failed", err)
		}
	}
	return nil
}

// readResponse assembles a (possibly multi-frame) VICP response,
// stopping at the first EOI frame or maxContinuationFrames, whichever
// comes first. This is the Go equivalent of LeCroy_Read_Response's
// malloc/realloc accumulation loop.
func readResponse(conn net.Conn, deadline time.Time) ([]byte, error) {
	var payload []byte

	for frames := 0; ; frames++ {
		if frames >= maxContinuationFrames {
			return nil, newErr(CodeFrameLimit, "exceeded maximum continuation frames")
		}

		var hdr [headerLen]byte
		if err := readFull(conn, hdr[:], deadline); err != nil {
			return nil, err
		}

		eoi, length, err := parseFrameHeader(hdr)
		if err != nil {
			return nil, err
		}

		if length > 0 {
			chunk := make([]byte, length)
			if err := readFull(conn, chunk, deadline); err != nil {
				return nil, err
			}
			payload = append(payload, chunk...)
		}

		if eoi {
			return payload, nil
		}
	}
}
