// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pool

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/gogpu/upscale/render"
)

// Key returns the pool key of a texture bound under name.
//
// The descriptor hash covers every field that changes the memory layout of
// the texture. The name takes part too: two textures of identical shape bound
// under different names are not interchangeable, since downstream passes may
// bind by name.
func Key(desc render.TextureDescriptor, name string) uint64 {
	d := desc.Normalize()

	var buf [29]byte
	binary.LittleEndian.PutUint32(buf[0:], d.Width)
	binary.LittleEndian.PutUint32(buf[4:], d.Height)
	binary.LittleEndian.PutUint32(buf[8:], d.Slices)
	binary.LittleEndian.PutUint32(buf[12:], uint32(d.Format))
	binary.LittleEndian.PutUint32(buf[16:], uint32(d.DepthStencilFormat))
	binary.LittleEndian.PutUint32(buf[20:], uint32(d.Dimension))
	binary.LittleEndian.PutUint32(buf[24:], d.MipLevelCount)
	buf[28] = flagBits(d)

	h := fnv.New64a()
	_, _ = h.Write(buf[:]) // fnv.Write never returns an error

	nh := fnv.New64a()
	_, _ = nh.Write([]byte(name))

	return h.Sum64()*23 + nh.Sum64()
}

func flagBits(d render.TextureDescriptor) byte {
	var b byte
	if d.RandomWrite {
		b |= 1
	}
	if d.AutoGenerateMips {
		b |= 2
	}
	if d.DynamicScale {
		b |= 4
	}
	if d.AlphaUpscale {
		b |= 8
	}
	return b
}
