package utils

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"
)

type platform struct {
	osType    string
	osRelease string
	osArch    string
}

var (
	platformOnce sync.Once
	hostPlatform platform
)

func detectPlatform() platform {
	platformOnce.Do(func() {
		hostPlatform = platform{osType: runtime.GOOS, osRelease: "unknown", osArch: runtime.GOARCH}
		info, err := host.Info()
		if err != nil {
			log.Debug().Str("op", "utils/useragent").Err(err).Msg("host info unavailable, using runtime values")
			return
		}
		if info.OS != "" {
			hostPlatform.osType = info.OS
		}
		if info.KernelVersion != "" {
			hostPlatform.osRelease = info.KernelVersion
		}
		if info.KernelArch != "" {
			hostPlatform.osArch = info.KernelArch
		}
	})
	return hostPlatform
}

// BuildUserAgent returns the client identifier sent with every probe and chunk request,
// in the form "fget/<version> (<os-type>/<os-release>; <os-arch>);".
func BuildUserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	p := detectPlatform()
	return fmt.Sprintf("%s/%s (%s/%s; %s);", ToolName, version, p.osType, p.osRelease, p.osArch)
}
