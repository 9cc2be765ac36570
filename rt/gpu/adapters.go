package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

type AdapterSummary struct {
	Preference string
	Name       string
	Driver     string
	Type       string
	Backend    string
}

// Adapters asks for the high-performance and the low-power adapter and reports
// each distinct one.
func Adapters(instance *wgpu.Instance) ([]AdapterSummary, error) {
	prefs := []struct {
		name string
		pref wgpu.PowerPreference
	}{
		{"high-performance", wgpu.PowerPreferenceHighPerformance},
		{"low-power", wgpu.PowerPreferenceLowPower},
	}

	var out []AdapterSummary
	seen := map[string]bool{}
	for _, p := range prefs {
		adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{PowerPreference: p.pref})
		if err != nil {
			continue
		}
		info := adapter.GetInfo()
		adapter.Release()
		if seen[info.Name] {
			continue
		}
		seen[info.Name] = true
		out = append(out, AdapterSummary{
			Preference: p.name,
			Name:       info.Name,
			Driver:     info.DriverDescription,
			Type:       info.AdapterType.String(),
			Backend:    info.BackendType.String(),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no webgpu adapter available")
	}
	return out, nil
}
