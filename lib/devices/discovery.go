package devices

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	nvidiaProcDir = "/proc/driver/nvidia/gpus"
	driDevDir     = "/dev/dri"
)

// pciAddressPattern matches PCI addresses like "0000:a2:00.0"
var pciAddressPattern = regexp.MustCompile(`^[0-9a-fA-F]{4}:[0-9a-fA-F]{2}:[0-9a-fA-F]{2}\.[0-9a-fA-F]$`)

// GPU is one discovered NVIDIA device.
type GPU struct {
	Index      int    `json:"index"`
	PCIAddress string `json:"pci_address"`
	Model      string `json:"model,omitempty"`
}

// Inventory is the host accelerator inventory.
type Inventory struct {
	GPUs          []GPU    `json:"gpus"`
	DRINodes      []string `json:"dri_nodes"`
	NvidiaRuntime bool     `json:"nvidia_runtime"`
}

// discoverNvidiaGPUs enumerates /proc/driver/nvidia/gpus. A missing
// directory means the driver is not loaded, which is not an error.
func discoverNvidiaGPUs(procDir string) ([]GPU, error) {
	entries, err := os.ReadDir(procDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var addrs []string
	for _, entry := range entries {
		if !entry.IsDir() || !pciAddressPattern.MatchString(entry.Name()) {
			continue
		}
		addrs = append(addrs, entry.Name())
	}
	sort.Strings(addrs)

	gpus := make([]GPU, 0, len(addrs))
	for i, addr := range addrs {
		gpus = append(gpus, GPU{
			Index:      i,
			PCIAddress: addr,
			Model:      readGPUModel(filepath.Join(procDir, addr, "information")),
		})
	}

	return gpus, nil
}

// readGPUModel parses the "Model:" line of the driver information file.
func readGPUModel(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "Model:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// discoverDRINodes lists character devices under /dev/dri. A missing
// directory means no DRM-capable device is present.
func discoverDRINodes(devDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var nodes []string
	for _, entry := range entries {
		path := filepath.Join(devDir, entry.Name())
		var st unix.Stat_t
		if err := unix.Stat(path, &st); err != nil {
			continue
		}
		if st.Mode&unix.S_IFMT == unix.S_IFCHR {
			nodes = append(nodes, path)
		}
	}
	sort.Strings(nodes)

	return nodes, nil
}
