// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halmem

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Open creates an instance of api, opens its preferred adapter and returns
// a backend owning the device. Discrete and integrated GPUs are preferred
// over other adapters. Close destroys the device and the instance.
func Open(api hal.Backend) (*Backend, error) {
	if api == nil {
		return nil, fmt.Errorf("halmem: nil hal backend")
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	b, err := New(openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	b.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	b.log().Info("halmem: device opened", "adapter", selected.Info.Name)
	return b, nil
}

// OpenVariant opens a backend on the registered hal backend of the given
// variant, such as gputypes.BackendVulkan.
func OpenVariant(variant gputypes.Backend) (*Backend, error) {
	api, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("%v backend not available", variant)
	}
	return Open(api)
}

// Close destroys the device and instance of a backend created by Open.
// Backends over a caller's device are left untouched. Buffers still
// allocated must not be used afterwards. Close is idempotent.
func (b *Backend) Close() {
	b.closeOnce.Do(func() {
		if n := b.Buffers(); n > 0 {
			b.log().Warn("halmem: closing with live buffers", "count", n)
		}
		if b.release != nil {
			b.release()
		}
	})
}
