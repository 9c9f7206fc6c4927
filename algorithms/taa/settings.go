// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package taa

import (
	"github.com/gogpu/gputypes"
)

// DefaultBlendFactor is the weight of the current frame in the history blend.
const DefaultBlendFactor = 0.1

// Settings configures the temporal upscaler.
//
// BlendFactor applies on the next frame. HistoryFormat changes the layout of
// the history targets, so changing it restarts the algorithm.
type Settings struct {
	// BlendFactor is the weight of the current frame in [0,1].
	BlendFactor float32

	// HistoryFormat is the format of the history targets. Undefined picks
	// RGBA16Float for HDR views and the output format otherwise.
	HistoryFormat gputypes.TextureFormat

	cachedFormat gputypes.TextureFormat
	cached       bool
}

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{BlendFactor: DefaultBlendFactor}
}

// RestartRequired reports a HistoryFormat change since the last frame.
func (s *Settings) RestartRequired() bool {
	return s.cached && s.HistoryFormat != s.cachedFormat
}

// UpdateCachedValues snapshots HistoryFormat.
func (s *Settings) UpdateCachedValues() {
	s.cachedFormat = s.HistoryFormat
	s.cached = true
}

// historyFormat resolves the history format for a view.
func (s *Settings) historyFormat(hdr bool, output gputypes.TextureFormat) gputypes.TextureFormat {
	switch {
	case s.HistoryFormat != gputypes.TextureFormatUndefined:
		return s.HistoryFormat
	case hdr:
		return gputypes.TextureFormatRGBA16Float
	case output != gputypes.TextureFormatUndefined:
		return output
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

func (s *Settings) blendFactor() float32 {
	return min(max(s.BlendFactor, 0), 1)
}
