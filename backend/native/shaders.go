// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"

	"github.com/gogpu/upscale/internal/cache"
)

// passKind identifies a compute pass.
type passKind uint8

const (
	passBlit passKind = iota
	passClear
	passMerge
	passReactive
	passSharpen
	passAccumulate
)

// passInfo describes the bind layout of a pass: binding 0 is the uniform
// block, then inputs sampled textures, then the storage destination. The
// merge pass always binds four masks; unused slots repeat the first one.
type passInfo struct {
	name   string
	inputs int
	source string
}

var passes = [...]passInfo{
	passBlit:       {name: "blit", inputs: 1, source: blitWGSL},
	passClear:      {name: "clear", inputs: 0, source: clearWGSL},
	passMerge:      {name: "merge", inputs: 4, source: mergeWGSL},
	passReactive:   {name: "reactive", inputs: 2, source: reactiveWGSL},
	passSharpen:    {name: "sharpen", inputs: 1, source: sharpenWGSL},
	passAccumulate: {name: "accumulate", inputs: 3, source: accumulateWGSL},
}

func (k passKind) String() string {
	if int(k) < len(passes) {
		return passes[k].name
	}
	return fmt.Sprintf("pass(%d)", k)
}

// workgroupSize matches @workgroup_size in every shader.
const workgroupSize = 8

// Blit filter modes understood by blitWGSL.
const (
	blitBilinear   = 0
	blitNearest    = 1
	blitCatmullRom = 2
	blitCopy       = 3
)

// storageFormat returns the storage-capable format a texture of format f is
// backed by, and its WGSL name.
func storageFormat(f gputypes.TextureFormat) (gputypes.TextureFormat, string) {
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR16Float, gputypes.TextureFormatR32Float:
		return gputypes.TextureFormatR32Float, "r32float"
	case gputypes.TextureFormatRGBA16Float:
		return gputypes.TextureFormatRGBA16Float, "rgba16float"
	case gputypes.TextureFormatRGBA32Float:
		return gputypes.TextureFormatRGBA32Float, "rgba32float"
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return gputypes.TextureFormatRGBA8Unorm, "rgba8unorm"
	default:
		return gputypes.TextureFormatRGBA16Float, "rgba16float"
	}
}

// wgslStorageFormat returns the WGSL name of a storage-capable format.
func wgslStorageFormat(f gputypes.TextureFormat) (string, error) {
	phys, name := storageFormat(f)
	if phys != f {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	return name, nil
}

// shaderSource returns the WGSL of pass k writing format.
func shaderSource(k passKind, format string) string {
	return strings.ReplaceAll(passes[k].source, "{{format}}", format)
}

type spirvKey struct {
	pass   passKind
	format string
}

// spirvCache holds compiled SPIR-V shared by every Device in the process.
var spirvCache = cache.New[spirvKey, []uint32](64, nil)

// compileSPIRV compiles the pass for format with naga.
func compileSPIRV(k passKind, format string) ([]uint32, error) {
	return spirvCache.GetOrCreate(spirvKey{pass: k, format: format}, func() ([]uint32, error) {
		b, err := naga.Compile(shaderSource(k, format))
		if err != nil {
			return nil, fmt.Errorf("native: compile %s shader: %w", k, err)
		}
		// SPIR-V is little-endian 32-bit words.
		code := make([]uint32, len(b)/4)
		for i := range code {
			code[i] = uint32(b[i*4]) |
				uint32(b[i*4+1])<<8 |
				uint32(b[i*4+2])<<16 |
				uint32(b[i*4+3])<<24
		}
		return code, nil
	})
}

// paramsWGSL is the uniform block shared by every pass. The meaning of the
// fields is per pass; see passParams.
const paramsWGSL = `
struct Params {
    a: vec4<f32>,
    b: vec4<f32>,
    rect: vec4<i32>,
    size: vec4<u32>,
}

@group(0) @binding(0) var<uniform> params: Params;
`

// blitWGSL resamples params.rect of src onto dst. size.z selects the filter.
const blitWGSL = paramsWGSL + `
@group(0) @binding(1) var src: texture_2d<f32>;
@group(0) @binding(2) var dst: texture_storage_2d<{{format}}, write>;

fn fetch(p: vec2<i32>) -> vec4<f32> {
    let lo = params.rect.xy;
    let hi = params.rect.xy + params.rect.zw - vec2<i32>(1, 1);
    return textureLoad(src, clamp(p, lo, hi), 0);
}

fn catmull_rom(x: f32) -> f32 {
    let a = abs(x);
    if (a < 1.0) {
        return (1.5 * a - 2.5) * a * a + 1.0;
    }
    if (a < 2.0) {
        return ((-0.5 * a + 2.5) * a - 4.0) * a + 2.0;
    }
    return 0.0;
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.size.x || id.y >= params.size.y) {
        return;
    }
    let scale = vec2<f32>(params.rect.zw) / vec2<f32>(params.size.xy);
    let pos = vec2<f32>(params.rect.xy) + (vec2<f32>(id.xy) + vec2<f32>(0.5, 0.5)) * scale - vec2<f32>(0.5, 0.5);
    let base = floor(pos);
    let f = pos - base;
    let b = vec2<i32>(base);
    var c = vec4<f32>(0.0, 0.0, 0.0, 0.0);
    switch params.size.z {
        case 1u: {
            c = fetch(vec2<i32>(floor(pos + vec2<f32>(0.5, 0.5))));
        }
        case 2u: {
            var sum = vec4<f32>(0.0, 0.0, 0.0, 0.0);
            var wsum = 0.0;
            for (var j = -1; j <= 2; j = j + 1) {
                for (var i = -1; i <= 2; i = i + 1) {
                    let w = catmull_rom(f32(i) - f.x) * catmull_rom(f32(j) - f.y);
                    sum = sum + w * fetch(b + vec2<i32>(i, j));
                    wsum = wsum + w;
                }
            }
            c = sum / wsum;
        }
        case 3u: {
            c = fetch(params.rect.xy + vec2<i32>(id.xy));
        }
        default: {
            let c00 = fetch(b);
            let c10 = fetch(b + vec2<i32>(1, 0));
            let c01 = fetch(b + vec2<i32>(0, 1));
            let c11 = fetch(b + vec2<i32>(1, 1));
            c = mix(mix(c00, c10, f.x), mix(c01, c11, f.x), f.y);
        }
    }
    textureStore(dst, vec2<i32>(id.xy), c);
}
`

// clearWGSL fills dst with params.a.
const clearWGSL = paramsWGSL + `
@group(0) @binding(1) var dst: texture_storage_2d<{{format}}, write>;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.size.x || id.y >= params.size.y) {
        return;
    }
    textureStore(dst, vec2<i32>(id.xy), params.a);
}
`

// mergeWGSL combines the masks enabled in params.b as 1 - prod(1 - m).
// Texels outside a mask count as zero.
const mergeWGSL = paramsWGSL + `
@group(0) @binding(1) var m0: texture_2d<f32>;
@group(0) @binding(2) var m1: texture_2d<f32>;
@group(0) @binding(3) var m2: texture_2d<f32>;
@group(0) @binding(4) var m3: texture_2d<f32>;
@group(0) @binding(5) var dst: texture_storage_2d<{{format}}, write>;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.size.x || id.y >= params.size.y) {
        return;
    }
    let p = vec2<i32>(id.xy);
    let one = vec4<f32>(1.0, 1.0, 1.0, 1.0);
    var keep = one;
    let d0 = textureDimensions(m0);
    if (params.b.x > 0.5 && id.x < d0.x && id.y < d0.y) {
        keep = keep * (one - textureLoad(m0, p, 0));
    }
    let d1 = textureDimensions(m1);
    if (params.b.y > 0.5 && id.x < d1.x && id.y < d1.y) {
        keep = keep * (one - textureLoad(m1, p, 0));
    }
    let d2 = textureDimensions(m2);
    if (params.b.z > 0.5 && id.x < d2.x && id.y < d2.y) {
        keep = keep * (one - textureLoad(m2, p, 0));
    }
    let d3 = textureDimensions(m3);
    if (params.b.w > 0.5 && id.x < d3.x && id.y < d3.y) {
        keep = keep * (one - textureLoad(m3, p, 0));
    }
    textureStore(dst, p, one - keep);
}
`

// reactiveWGSL derives the auto reactive mask. a = (scale, cutoff, binary),
// size.z holds the flags.
const reactiveWGSL = paramsWGSL + `
@group(0) @binding(1) var opaque: texture_2d<f32>;
@group(0) @binding(2) var color: texture_2d<f32>;
@group(0) @binding(3) var dst: texture_storage_2d<{{format}}, write>;

fn tonemap(c: vec3<f32>) -> vec3<f32> {
    return c / (1.0 + max(c.r, max(c.g, c.b)));
}

fn inverse_tonemap(c: vec3<f32>) -> vec3<f32> {
    return c / max(1.0 / 32768.0, 1.0 - max(c.r, max(c.g, c.b)));
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.size.x || id.y >= params.size.y) {
        return;
    }
    let p = vec2<i32>(id.xy);
    let flags = params.size.z;
    var pre = textureLoad(opaque, p, 0).rgb;
    var post = textureLoad(color, p, 0).rgb;
    if ((flags & 1u) != 0u) {
        pre = tonemap(pre);
        post = tonemap(post);
    }
    if ((flags & 2u) != 0u) {
        pre = inverse_tonemap(pre);
        post = inverse_tonemap(post);
    }
    let d = abs(post - pre);
    var v = length(d);
    if ((flags & 8u) != 0u) {
        v = max(d.r, max(d.g, d.b));
    }
    v = v * params.a.x;
    if ((flags & 4u) != 0u) {
        v = select(params.a.z, 0.0, v < params.a.y);
    } else {
        v = clamp(v, 0.0, 1.0);
    }
    textureStore(dst, p, vec4<f32>(v, v, v, 1.0));
}
`

// sharpenWGSL is robust contrast adaptive sharpening. a.x is the lobe scale.
const sharpenWGSL = paramsWGSL + `
@group(0) @binding(1) var src: texture_2d<f32>;
@group(0) @binding(2) var dst: texture_storage_2d<{{format}}, write>;

fn fetch(p: vec2<i32>) -> vec3<f32> {
    let hi = vec2<i32>(textureDimensions(src)) - vec2<i32>(1, 1);
    return textureLoad(src, clamp(p, vec2<i32>(0, 0), hi), 0).rgb;
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.size.x || id.y >= params.size.y) {
        return;
    }
    let p = vec2<i32>(id.xy);
    let c4 = textureLoad(src, p, 0);
    let c = c4.rgb;
    let n = fetch(p + vec2<i32>(0, -1));
    let s = fetch(p + vec2<i32>(0, 1));
    let w = fetch(p + vec2<i32>(-1, 0));
    let e = fetch(p + vec2<i32>(1, 0));
    let zero = vec3<f32>(0.0, 0.0, 0.0);
    let one = vec3<f32>(1.0, 1.0, 1.0);
    let mn = min(min(min(n, s), min(w, e)), c);
    let mx = max(max(max(n, s), max(w, e)), c);
    let hit_min = select(zero, mn / (4.0 * mx), mx > zero);
    let denom = 4.0 * mn - 4.0 * one;
    let hit_max = select(zero, (one - mx) / denom, denom < zero);
    let l = max(-hit_min, hit_max);
    var lobe = max(-0.1875, max(l.r, max(l.g, l.b)));
    lobe = min(lobe, 0.0) * params.a.x;
    let rcp = 1.0 / (4.0 * lobe + 1.0);
    let o = clamp((lobe * (n + s + w + e) + c) * rcp, zero, one);
    textureStore(dst, p, vec4<f32>(o, c4.a));
}
`

// accumulateWGSL blends current into history. a = (blend, has reactive),
// rect is the reactive region scaled over size.
const accumulateWGSL = paramsWGSL + `
@group(0) @binding(1) var history: texture_2d<f32>;
@group(0) @binding(2) var current: texture_2d<f32>;
@group(0) @binding(3) var reactive: texture_2d<f32>;
@group(0) @binding(4) var dst: texture_storage_2d<{{format}}, write>;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.size.x || id.y >= params.size.y) {
        return;
    }
    let p = vec2<i32>(id.xy);
    var r = 0.0;
    if (params.a.y > 0.5) {
        let q = params.rect.xy + (p * params.rect.zw) / vec2<i32>(params.size.xy);
        r = clamp(textureLoad(reactive, q, 0).r, 0.0, 1.0);
    }
    let b = clamp(params.a.x, 0.0, 1.0);
    let w = b + r * (1.0 - b);
    textureStore(dst, p, mix(textureLoad(history, p, 0), textureLoad(current, p, 0), w));
}
`
