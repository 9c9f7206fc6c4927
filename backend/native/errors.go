// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

var (
	// ErrNilDevice is returned when a HAL device or queue is missing.
	ErrNilDevice = errors.New("native: nil HAL device or queue")

	// ErrNoHALProvider is returned by FromProvider when the provider does
	// not expose HAL objects.
	ErrNoHALProvider = errors.New("native: provider does not expose a HAL device")

	// ErrUnsupportedFormat is returned when a pass destination cannot be
	// written as a storage texture.
	ErrUnsupportedFormat = errors.New("native: format cannot be a pass destination")

	// ErrDeviceDestroyed is returned after Destroy.
	ErrDeviceDestroyed = errors.New("native: device destroyed")
)
