//go:build linux

package vicp

import "github.com/docker/docker/pkg/parsers/kernel"

// Diagnostics reports host-level facts useful when a link recovery
// loop keeps failing and the cause isn't the instrument at all: an old
// kernel's default socket buffer ceiling can silently cap the
// SO_RCVBUF this module requests in tuneSocket. Grounded on
// pkg/linux/init.go's kernel-version-gated struct sizing, but reporting
// rather than panicking on a parse failure — a diagnostics accessor
// should degrade gracefully, not crash a long-running IOC.
type Diagnostics struct {
	KernelVersion string
}

// HostDiagnostics collects Diagnostics for the current host.
func HostDiagnostics() (Diagnostics, error) {
	v, err := kernel.GetKernelVersion()
	if err != nil {
		return Diagnostics{}, wrapErr(CodeBadArgument, "could not determine kernel version", err)
	}
	return Diagnostics{KernelVersion: v.String()}, nil
}
