//go:build linux

package tcpinfo

import "github.com/docker/docker/pkg/parsers/kernel"

// The Linux kernel's tcp_info struct has grown fields release over
// release; a field this package tries to read that postdates the
// running kernel would otherwise read as zero/garbage rather than the
// "not available" it really means. These flags gate each field group
// by kernel version the same way pkg/linux/init.go does for the
// separate RawTCPInfo mirror in that package.
var (
	linuxKernelVersion *kernel.VersionInfo

	kernelVersionIsAtLeast_2_6_2 = false
	kernelVersionIsAtLeast_3_15  = false
	kernelVersionIsAtLeast_4_1   = false
	kernelVersionIsAtLeast_4_2   = false
	kernelVersionIsAtLeast_4_6   = false
	kernelVersionIsAtLeast_4_9   = false
	kernelVersionIsAtLeast_4_10  = false
	kernelVersionIsAtLeast_4_18  = false
	kernelVersionIsAtLeast_4_19  = false
	kernelVersionIsAtLeast_5_4   = false
	kernelVersionIsAtLeast_5_5   = false
	kernelVersionIsAtLeast_6_2   = false

	sizeOfRawTCPInfo int
)

type versionedStructSize struct {
	version kernel.VersionInfo
	size    int
	flag    *bool
}

var tcpInfoSizes = []versionedStructSize{
	{version: kernel.VersionInfo{Kernel: 2, Major: 6, Minor: 2}, size: 104, flag: &kernelVersionIsAtLeast_2_6_2},
	{version: kernel.VersionInfo{Kernel: 3, Major: 15, Minor: 0}, size: 120, flag: &kernelVersionIsAtLeast_3_15},
	{version: kernel.VersionInfo{Kernel: 4, Major: 1, Minor: 0}, size: 136, flag: &kernelVersionIsAtLeast_4_1},
	{version: kernel.VersionInfo{Kernel: 4, Major: 2, Minor: 0}, size: 144, flag: &kernelVersionIsAtLeast_4_2},
	{version: kernel.VersionInfo{Kernel: 4, Major: 6, Minor: 0}, size: 160, flag: &kernelVersionIsAtLeast_4_6},
	{version: kernel.VersionInfo{Kernel: 4, Major: 9, Minor: 0}, size: 168, flag: &kernelVersionIsAtLeast_4_9},
	{version: kernel.VersionInfo{Kernel: 4, Major: 10, Minor: 0}, size: 192, flag: &kernelVersionIsAtLeast_4_10},
	{version: kernel.VersionInfo{Kernel: 4, Major: 18, Minor: 0}, size: 200, flag: &kernelVersionIsAtLeast_4_18},
	{version: kernel.VersionInfo{Kernel: 4, Major: 19, Minor: 0}, size: 224, flag: &kernelVersionIsAtLeast_4_19},
	{version: kernel.VersionInfo{Kernel: 5, Major: 4, Minor: 0}, size: 232, flag: &kernelVersionIsAtLeast_5_4},
	{version: kernel.VersionInfo{Kernel: 5, Major: 5, Minor: 0}, size: 232, flag: &kernelVersionIsAtLeast_5_5},
	{version: kernel.VersionInfo{Kernel: 6, Major: 2, Minor: 0}, size: 240, flag: &kernelVersionIsAtLeast_6_2},
}

func init() {
	v, err := kernel.GetKernelVersion()
	if err != nil {
		// A session running inside a container with a restricted /proc
		// can't always resolve this; fall back to assuming the oldest
		// supported layout rather than failing package init outright.
		sizeOfRawTCPInfo = tcpInfoSizes[0].size
		*tcpInfoSizes[0].flag = true
		return
	}
	linuxKernelVersion = v
	adaptToKernelVersion()
}

func adaptToKernelVersion() {
	for i := len(tcpInfoSizes) - 1; i >= 0; i-- {
		if kernel.CompareKernelVersion(*linuxKernelVersion, tcpInfoSizes[i].version) >= 0 {
			sizeOfRawTCPInfo = tcpInfoSizes[i].size
			for j := i; j >= 0; j-- {
				*tcpInfoSizes[j].flag = true
			}
			return
		}
	}
}
