package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Headless is a WebGPU device opened without a presentation surface.
type Headless struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
}

// NewHeadlessDevice requests a high-performance adapter and its default device.
func NewHeadlessDevice() (*Headless, error) {
	h := &Headless{Instance: wgpu.CreateInstance(nil)}
	adapter, err := h.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		h.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	h.Adapter = adapter

	h.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		h.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	return h, nil
}

func (h *Headless) Release() {
	if h.Device != nil {
		h.Device.Release()
		h.Device = nil
	}
	if h.Adapter != nil {
		h.Adapter.Release()
		h.Adapter = nil
	}
	if h.Instance != nil {
		h.Instance.Release()
		h.Instance = nil
	}
}
