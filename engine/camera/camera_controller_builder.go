package camera

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithMoveSpeed sets the movement speed.
//
// Parameters:
//   - speed: world units per second
//
// Returns:
//   - CameraControllerOption: a function that sets the movement speed
func WithMoveSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.moveSpeed = speed
	}
}

// WithFastMultiplier sets the speed factor applied while shift is held.
//
// Parameters:
//   - m: the speed multiplier
//
// Returns:
//   - CameraControllerOption: a function that sets the fast movement multiplier
func WithFastMultiplier(m float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.fastMultiplier = m
	}
}

// WithMouseSensitivity sets the rotation in degrees per pixel of cursor movement.
//
// Parameters:
//   - sensitivity: degrees per pixel
//
// Returns:
//   - CameraControllerOption: a function that sets the mouse sensitivity
func WithMouseSensitivity(sensitivity float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.mouseSensitivity = sensitivity
	}
}

// WithZoomSpeed sets the field of view change in degrees per scroll step.
//
// Parameters:
//   - speed: degrees per scroll unit
//
// Returns:
//   - CameraControllerOption: a function that sets the zoom speed
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.zoomSpeed = speed
	}
}
