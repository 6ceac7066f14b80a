package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

// cameraControllerImpl is the fly-camera implementation of CameraController.
type cameraControllerImpl struct {
	mu *sync.Mutex

	camera Camera
	held   map[uint32]bool

	rotating   bool
	lastCursor [2]int32

	moveSpeed        float32
	fastMultiplier   float32
	mouseSensitivity float32
	zoomSpeed        float32
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a fly controller for c.
//
// Parameters:
//   - c: the camera to drive
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(c Camera, options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:               &sync.Mutex{},
		camera:           c,
		held:             make(map[uint32]bool),
		moveSpeed:        1.0,
		fastMultiplier:   4.0,
		mouseSensitivity: 0.2,
		zoomSpeed:        2.0,
	}
	for _, option := range options {
		option(cc)
	}
	return cc
}

func (cc *cameraControllerImpl) Camera() Camera {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.camera
}

func (cc *cameraControllerImpl) SetCamera(c Camera) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.camera = c
}

func (cc *cameraControllerImpl) KeyDown(keyCode uint32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.held[keyCode] = true
}

func (cc *cameraControllerImpl) KeyUp(keyCode uint32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	delete(cc.held, keyCode)
}

func (cc *cameraControllerImpl) BeginRotate(x, y int32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.rotating = true
	cc.lastCursor = [2]int32{x, y}
}

func (cc *cameraControllerImpl) EndRotate() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.rotating = false
}

func (cc *cameraControllerImpl) MouseMove(x, y int32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if !cc.rotating || cc.camera == nil {
		return
	}
	dx := float32(x - cc.lastCursor[0])
	dy := float32(y - cc.lastCursor[1])
	cc.lastCursor = [2]int32{x, y}
	// cursor y grows downward; positive pitch and yaw turn the view up and left
	cc.camera.Rotate(-dy*cc.mouseSensitivity, -dx*cc.mouseSensitivity)
}

func (cc *cameraControllerImpl) Scroll(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.camera == nil {
		return
	}
	cc.camera.Zoom(delta * cc.zoomSpeed)
}

func (cc *cameraControllerImpl) Update(dt float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.camera == nil || len(cc.held) == 0 {
		return
	}

	var dir mgl32.Vec3
	forward, right, up := cc.camera.Forward(), cc.camera.Right(), cc.camera.Up()
	if cc.held[common.KeyW] {
		dir = dir.Add(forward)
	}
	if cc.held[common.KeyS] {
		dir = dir.Sub(forward)
	}
	if cc.held[common.KeyD] {
		dir = dir.Add(right)
	}
	if cc.held[common.KeyA] {
		dir = dir.Sub(right)
	}
	if cc.held[common.KeyE] {
		dir = dir.Add(up)
	}
	if cc.held[common.KeyQ] {
		dir = dir.Sub(up)
	}
	if dir.Len() < 1e-6 {
		return
	}

	speed := cc.moveSpeed
	if cc.held[common.KeyLeftShift] || cc.held[common.KeyRightShift] {
		speed *= cc.fastMultiplier
	}
	cc.camera.Move(dir.Normalize().Mul(speed * dt))
}

func (cc *cameraControllerImpl) MoveSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.moveSpeed
}

func (cc *cameraControllerImpl) SetMoveSpeed(speed float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.moveSpeed = speed
}
