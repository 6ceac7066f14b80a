package common

// Virtual key codes delivered by the window layer. The values match GLFW key codes, which use
// ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	// camera movement
	KeyW = 87
	KeyA = 65
	KeyS = 83
	KeyD = 68
	KeyQ = 81
	KeyE = 69

	// render path selection
	Key1 = 49
	Key2 = 50
	Key3 = 51

	KeyT = 84 // cycle tone-mapping operator
	KeyM = 77 // toggle multiple scattering
	KeyL = 76 // toggle moving lights
	KeyV = 86 // toggle cluster debug visualization

	KeyEqual = 61  // add lights
	KeyMinus = 45  // remove lights
	KeyF12   = 301 // screenshot
	KeyEsc   = 256

	KeyLeftShift  = 340
	KeyRightShift = 344
)
