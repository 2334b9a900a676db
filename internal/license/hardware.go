package license

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/cpu"
	psnet "github.com/shirou/gopsutil/net"
	"github.com/sirupsen/logrus"

	"github.com/idelchi/modelseal/internal/logging"
)

// ErrNoInterface is returned when no usable network interface exists.
var ErrNoInterface = errors.New("no network interface with a hardware address")

const unknownHardware = "unknown"

// SystemProbe reads the device description from the running system.
// The first NVIDIA GPU is preferred as hardware descriptor; the CPU model is the fallback.
type SystemProbe struct {
	// NvidiaSMI is the nvidia-smi binary. Empty means "nvidia-smi" from PATH.
	NvidiaSMI string

	// Logger receives probe diagnostics.
	Logger *logrus.Logger
}

// Device probes the hardware descriptor and the primary MAC address.
func (p SystemProbe) Device(ctx context.Context) (DeviceInfo, error) {
	mac, err := PrimaryMAC(ctx)
	if err != nil {
		return DeviceInfo{}, err
	}

	return DeviceInfo{MAC: mac, Hardware: p.hardware(ctx)}, nil
}

func (p SystemProbe) hardware(ctx context.Context) string {
	logger := logging.OrDiscard(p.Logger)

	gpu, err := p.gpu(ctx)
	if err == nil {
		return gpu
	}

	logger.WithError(err).Debug("no GPU descriptor, falling back to CPU model")

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil || len(infos) == 0 || infos[0].ModelName == "" {
		logger.WithError(err).Debug("no CPU model name")

		return unknownHardware
	}

	return strings.TrimSpace(infos[0].ModelName)
}

// gpu queries the first GPU as "<name> (<N>GB)", with memory rounded down to whole GiB.
func (p SystemProbe) gpu(ctx context.Context) (string, error) {
	bin := p.NvidiaSMI
	if bin == "" {
		bin = "nvidia-smi"
	}

	//nolint:gosec // fixed arguments, binary from configuration
	out, err := exec.CommandContext(ctx, bin, "--query-gpu=name,memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return "", fmt.Errorf("running %s: %w", bin, err)
	}

	return parseGPU(out)
}

func parseGPU(out []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return "", errors.New("no GPU listed")
	}

	name, memory, ok := strings.Cut(scanner.Text(), ",")
	if !ok {
		return "", fmt.Errorf("unexpected GPU line %q", scanner.Text())
	}

	mib, err := strconv.ParseFloat(strings.TrimSpace(memory), 64)
	if err != nil {
		return "", fmt.Errorf("parsing GPU memory: %w", err)
	}

	const mibPerGiB = 1024

	return fmt.Sprintf("%s (%dGB)", strings.TrimSpace(name), int64(mib)/mibPerGiB), nil
}

// PrimaryMAC returns the hardware address of the up, non-loopback interface with the lowest index.
func PrimaryMAC(ctx context.Context) (string, error) {
	interfaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("listing network interfaces: %w", err)
	}

	candidates := make([]psnet.InterfaceStat, 0, len(interfaces))

	for _, iface := range interfaces {
		if usable(iface) {
			candidates = append(candidates, iface)
		}
	}

	if len(candidates) == 0 {
		return "", ErrNoInterface
	}

	slices.SortFunc(candidates, func(a, b psnet.InterfaceStat) int { return a.Index - b.Index })

	return strings.ToLower(candidates[0].HardwareAddr), nil
}

func usable(iface psnet.InterfaceStat) bool {
	if iface.HardwareAddr == "" || strings.Trim(iface.HardwareAddr, "0:") == "" {
		return false
	}

	return slices.Contains(iface.Flags, "up") && !slices.Contains(iface.Flags, "loopback")
}
