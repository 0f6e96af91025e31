// Package device identifies the machine the agent runs on.
package device

import (
	"context"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/op/go-logging"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

var log = logging.MustGetLogger("device")

// Info describes the host. It is sent with the work-start notification so
// the backend can tell an employee's machines apart.
type Info struct {
	AgentID         string  `json:"agentId"`
	Hostname        string  `json:"hostname"`
	OS              string  `json:"os"`
	Platform        string  `json:"platform,omitempty"`
	PlatformVersion string  `json:"platformVersion,omitempty"`
	KernelVersion   string  `json:"kernelVersion,omitempty"`
	MemoryGiB       float32 `json:"memoryGiB,omitempty"`
}

// agentNamespace scopes agent IDs derived from host IDs.
var agentNamespace = uuid.MustParse("6f1c52f4-3c1e-4d8a-9a57-1f0b5d2e7c40")

// AgentID derives a stable identifier from hostID, or a random one when the
// host ID is unknown.
func AgentID(hostID string) string {
	if hostID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(agentNamespace, []byte(hostID)).String()
}

// Identify collects host information. Lookup failures are logged and the
// affected fields fall back to what the Go runtime knows.
func Identify(ctx context.Context) Info {
	info := Info{OS: runtime.GOOS}

	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Warningf("host info unavailable: %v", err)
		hi = &host.InfoStat{}
	}
	info.AgentID = AgentID(hi.HostID)
	info.Hostname = hi.Hostname
	info.Platform = hi.Platform
	info.PlatformVersion = hi.PlatformVersion
	info.KernelVersion = hi.KernelVersion
	if hi.OS != "" {
		info.OS = hi.OS
	}
	if info.Hostname == "" {
		info.Hostname, _ = os.Hostname()
	}

	if vmem, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryGiB = float32(vmem.Total) / (1024 * 1024 * 1024)
	} else {
		log.Debugf("memory info unavailable: %v", err)
	}
	return info
}
