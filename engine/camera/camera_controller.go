package camera

// CameraController maps raw window input to Camera operations. Keys are tracked as held state
// and applied once per tick, scaled by the elapsed time, so movement speed does not depend on the
// tick rate. Mouse movement rotates the camera only while the rotate button is held.
type CameraController interface {
	// Camera returns the controlled camera.
	//
	// Returns:
	//   - Camera: the camera driven by this controller
	Camera() Camera

	// SetCamera replaces the controlled camera, e.g. after a scene load. Held input is kept.
	//
	// Parameters:
	//   - c: the camera to drive
	SetCamera(c Camera)

	// KeyDown records a held key.
	//
	// Parameters:
	//   - keyCode: the virtual key code, see common.KeyW and friends
	KeyDown(keyCode uint32)

	// KeyUp releases a held key.
	//
	// Parameters:
	//   - keyCode: the virtual key code
	KeyUp(keyCode uint32)

	// BeginRotate starts mouse-look at the given cursor position.
	//
	// Parameters:
	//   - x, y: the cursor position in pixels
	BeginRotate(x, y int32)

	// EndRotate stops mouse-look.
	EndRotate()

	// MouseMove rotates the camera by the cursor delta while mouse-look is active.
	//
	// Parameters:
	//   - x, y: the cursor position in pixels
	MouseMove(x, y int32)

	// Scroll zooms the camera; positive delta zooms in.
	//
	// Parameters:
	//   - delta: the scroll wheel delta
	Scroll(delta float32)

	// Update applies held movement keys for dt seconds.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	Update(dt float32)

	// MoveSpeed returns the movement speed in world units per second.
	MoveSpeed() float32

	// SetMoveSpeed sets the movement speed, typically scaled to the scene bounds.
	//
	// Parameters:
	//   - speed: world units per second
	SetMoveSpeed(speed float32)
}
