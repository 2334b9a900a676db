package license

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// DeviceInfo describes the local machine to the license authority.
type DeviceInfo struct {
	// MAC is the primary network address, lowercase and colon separated.
	MAC string `json:"mac"`
	// Hardware is "<gpu name> (<N>GB)" or the CPU model name.
	Hardware string `json:"hardware"`
}

// Fingerprint reduces the device descriptor to a stable identifier: the hex form (no dashes)
// of the name-based UUID of "<hardware>-<mac>" in the DNS namespace.
func (d DeviceInfo) Fingerprint() string {
	id := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(d.Hardware+"-"+d.MAC))

	return strings.ReplaceAll(id.String(), "-", "")
}

// Probe discovers the DeviceInfo of the running machine.
type Probe interface {
	Device(ctx context.Context) (DeviceInfo, error)
}

// StaticProbe returns a fixed DeviceInfo.
type StaticProbe DeviceInfo

// Device returns the fixed description.
func (s StaticProbe) Device(context.Context) (DeviceInfo, error) {
	return DeviceInfo(s), nil
}
