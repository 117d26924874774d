package facts

import (
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// gatherLocal 进程内收集本机事实，不需要执行外部命令
func gatherLocal() (Facts, error) {
	facts := make(Facts)

	info, err := host.Info()
	if err != nil {
		// 退化成 runtime 能提供的信息
		facts["ansible_system"] = capitalize(runtime.GOOS)
		facts["ansible_architecture"] = runtime.GOARCH
		return facts, nil
	}

	facts["ansible_system"] = capitalize(info.OS)
	facts["ansible_architecture"] = info.KernelArch
	facts["ansible_kernel"] = info.KernelVersion
	facts["ansible_hostname"] = info.Hostname

	if info.Platform != "" {
		facts["ansible_distribution"] = capitalize(info.Platform)
		facts["ansible_os_family"] = osFamily(info.PlatformFamily + " " + info.Platform)
	}
	if info.PlatformVersion != "" {
		facts["ansible_distribution_version"] = info.PlatformVersion
		facts["ansible_distribution_major_version"] = strings.Split(info.PlatformVersion, ".")[0]
	}

	facts["ansible_processor_vcpus"] = runtime.NumCPU()
	if vm, err := mem.VirtualMemory(); err == nil {
		facts["ansible_memtotal_mb"] = int(vm.Total / 1024 / 1024)
	}

	return facts, nil
}
