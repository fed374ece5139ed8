//go:build !linux

package vicp

// Diagnostics reports host-level facts relevant to link recovery. The
// kernel-version report is Linux-only (docker/docker's parser targets
// /proc and uname(2) as Linux exposes them); other platforms get an
// empty KernelVersion rather than a build failure.
type Diagnostics struct {
	KernelVersion string
}

// HostDiagnostics collects Diagnostics for the current host.
func HostDiagnostics() (Diagnostics, error) {
	return Diagnostics{}, nil
}
