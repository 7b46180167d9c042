// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import "errors"

var (
	// ErrDeviceNotFound is returned when no adapter satisfies the selection.
	ErrDeviceNotFound = errors.New("gpu: no suitable device found")

	// ErrBackendNotAvailable is returned when the requested backend is not registered.
	ErrBackendNotAvailable = errors.New("gpu: backend not available")

	// ErrDeviceCreationFailed is returned when the backend cannot open a device.
	ErrDeviceCreationFailed = errors.New("gpu: device creation failed")

	// ErrContextClosed is returned when a closed Context is used.
	ErrContextClosed = errors.New("gpu: context is closed")

	// ErrFenceTimeout is returned when a fence wait exceeds Options.FenceTimeout.
	ErrFenceTimeout = errors.New("gpu: fence wait timed out")

	// ErrInvalidDimensions is returned for textures with a zero or negative size.
	ErrInvalidDimensions = errors.New("gpu: invalid texture dimensions")

	// ErrUnsupportedFormat is returned for texture formats a backend cannot allocate.
	ErrUnsupportedFormat = errors.New("gpu: unsupported texture format")

	// ErrForeignTexture is returned when a texture from another device is used.
	ErrForeignTexture = errors.New("gpu: texture belongs to another device")

	// ErrTextureDestroyed is returned when a destroyed texture is used.
	ErrTextureDestroyed = errors.New("gpu: texture destroyed")
)
