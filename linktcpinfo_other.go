//go:build !darwin

package vicp

import "github.com/epics-modules/lecroyvicp/pkg/tcpinfo"

func getTCPInfo(fd uintptr) (*tcpinfo.SysInfo, error) {
	return tcpinfo.GetTCPInfo(fd)
}
