// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// pipelineKey identifies a compiled pass for one destination format.
type pipelineKey struct {
	pass   passKind
	format gputypes.TextureFormat
}

// pipeline holds the HAL objects of one compute pass.
type pipeline struct {
	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	layout     hal.PipelineLayout
	compute    hal.ComputePipeline
}

// newPipeline compiles and creates the pass k writing format.
func newPipeline(device hal.Device, key pipelineKey) (p *pipeline, err error) {
	wgslFormat, err := wgslStorageFormat(key.format)
	if err != nil {
		return nil, err
	}
	code, err := compileSPIRV(key.pass, wgslFormat)
	if err != nil {
		return nil, err
	}

	label := "upscale_" + key.pass.String()
	p = &pipeline{}
	defer func() {
		if err != nil {
			p.destroy(device)
			p = nil
		}
	}()

	p.module, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s shader module: %w", key.pass, err)
	}

	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_layout",
		Entries: bindLayoutEntries(key),
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s bind group layout: %w", key.pass, err)
	}

	p.layout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s pipeline layout: %w", key.pass, err)
	}

	p.compute, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label,
		Layout:  p.layout,
		Compute: hal.ComputeState{Module: p.module, EntryPoint: "main"},
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s compute pipeline: %w", key.pass, err)
	}

	slogger().Debug("native: pipeline created",
		slog.String("pass", key.pass.String()),
		slog.String("format", key.format.String()))
	return p, nil
}

// bindLayoutEntries returns the uniform block, the sampled inputs and the
// storage destination of a pass.
func bindLayoutEntries(key pipelineKey) []gputypes.BindGroupLayoutEntry {
	info := passes[key.pass]
	entries := make([]gputypes.BindGroupLayoutEntry, 0, info.inputs+2)
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageCompute,
		Buffer: &gputypes.BufferBindingLayout{
			Type:           gputypes.BufferBindingTypeUniform,
			MinBindingSize: paramsSize,
		},
	})
	for i := 0; i < info.inputs; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i + 1),
			Visibility: gputypes.ShaderStageCompute,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    uint32(info.inputs + 1),
		Visibility: gputypes.ShaderStageCompute,
		StorageTexture: &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessWriteOnly,
			Format:        key.format,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	})
	return entries
}

// destroy releases the HAL objects in reverse creation order.
func (p *pipeline) destroy(device hal.Device) {
	if p == nil || device == nil {
		return
	}
	if p.compute != nil {
		device.DestroyComputePipeline(p.compute)
	}
	if p.layout != nil {
		device.DestroyPipelineLayout(p.layout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.module != nil {
		device.DestroyShaderModule(p.module)
	}
}
