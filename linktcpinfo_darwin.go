//go:build darwin

package vicp

import "github.com/epics-modules/lecroyvicp/pkg/tcpinfo"

// getTCPInfo adapts rawConn.Control's uintptr fd to the int fd
// pkg/tcpinfo's Darwin GetTCPInfo expects (its getsockopt(2) wrapper
// predates the Linux/Windows variants and was never unified on uintptr).
func getTCPInfo(fd uintptr) (*tcpinfo.SysInfo, error) {
	return tcpinfo.GetTCPInfo(int(fd))
}
