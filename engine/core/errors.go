package core

import (
	"errors"
)

// Fatal-at-startup failures. None of these are retried; the caller must abort
// initialization.
var (
	ErrInstanceCreationFailed  = errors.New("vulkan instance creation failed")
	ErrSurfaceCreationFailed   = errors.New("vulkan surface creation failed")
	ErrNoSuitableDevice        = errors.New("no device with graphics and present support")
	ErrDeviceCreationFailed    = errors.New("logical device creation failed")
	ErrSwapchainCreationFailed = errors.New("swapchain creation failed")
)

// Resource exhaustion. Propagated to the resource-creation caller and never
// retried internally, since a retry without freeing something is pointless.
var (
	ErrOutOfDeviceMemory = errors.New("out of device memory")
	ErrOutOfHostMemory   = errors.New("out of host memory")
)

var (
	ErrAllocationReleased = errors.New("allocation already released")
	ErrDeviceHang         = errors.New("device did not signal fence within deadline")
	ErrUnknown            = errors.New("unknown")
)
