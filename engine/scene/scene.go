package scene

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultAmbient is the ambient irradiance of a new scene.
const DefaultAmbient float32 = 0.03

// ErrIncompleteScene is returned by Load when there is nothing to render.
var ErrIncompleteScene = errors.New("scene is incomplete or invalid")

// Scene is the data a renderer draws: meshes, their materials, the camera and the lights.
//
// Meshes are kept opaque-first so that blended geometry is drawn after everything it can cover.
// Sky color and lights are not populated by Load.
type Scene interface {
	// Name retrieves the scene name.
	Name() string

	// Loaded reports whether Load succeeded and Clear has not been called since.
	Loaded() bool

	// Load replaces the scene's geometry and materials. Meshes are reordered opaque-first and the
	// bounds are recomputed. When cam is nil a camera fitted to the bounds is created with
	// DefaultCamera.
	//
	// Parameters:
	//   - meshes: the meshes to draw, at least one
	//   - materials: the materials indexed by the meshes
	//   - cam: the camera, or nil
	//
	// Returns:
	//   - error: ErrIncompleteScene when meshes is empty, or an error naming a mesh whose material
	//     index is out of range
	Load(meshes []model.Mesh, materials []material.Material, cam camera.Camera) error

	// Clear drops meshes, materials and lights and resets the bounds and camera.
	Clear()

	// Camera retrieves the active camera.
	Camera() camera.Camera

	// SetCamera replaces the active camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Meshes returns the meshes, opaque first.
	Meshes() []model.Mesh

	// Materials returns the materials.
	Materials() []material.Material

	// Material returns the material at index i, or nil when out of range.
	//
	// Parameters:
	//   - i: the material index
	//
	// Returns:
	//   - material.Material: the material or nil
	Material(i int) material.Material

	// Lights returns the point light list.
	Lights() light.PointLightList

	// Ambient returns the ambient light.
	Ambient() light.AmbientLight

	// SetAmbient replaces the ambient irradiance.
	//
	// Parameters:
	//   - a: the ambient light
	SetAmbient(a light.AmbientLight)

	// SkyColor returns the sRGB-encoded background color.
	SkyColor() mgl32.Vec4

	// SetSkyColor sets the sRGB-encoded background color.
	//
	// Parameters:
	//   - c: the sky color
	SetSkyColor(c mgl32.Vec4)

	// Bounds returns the world-space bounding box of every mesh.
	Bounds() common.AABB

	// Update advances the light animation by dt seconds inside the scene bounds.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	Update(dt float32)
}

type scene struct {
	mu *sync.RWMutex

	name   string
	loaded bool

	cam       camera.Camera
	meshes    []model.Mesh
	materials []material.Material
	bounds    common.AABB

	lights   light.PointLightList
	ambient  light.AmbientLight
	skyColor mgl32.Vec4
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates an empty, unloaded Scene with black sky, DefaultAmbient ambient irradiance and
// an empty light list.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:       &sync.RWMutex{},
		name:     name,
		cam:      camera.NewCamera(),
		bounds:   common.AABB{},
		ambient:  light.AmbientLight{Irradiance: mgl32.Vec3{DefaultAmbient, DefaultAmbient, DefaultAmbient}},
		skyColor: mgl32.Vec4{0, 0, 0, 1},
	}
	for _, option := range options {
		option(s)
	}
	if s.lights == nil {
		s.lights = light.NewPointLightList()
	}
	return s
}

// DefaultCamera creates a camera for an asset that carries none. The far plane spans the bounds
// diagonal and the near plane keeps the far/near ratio at 50 for depth precision. The camera sits at
// the centre of the bounds looking down +Z.
//
// Parameters:
//   - bounds: the scene bounds
//
// Returns:
//   - camera.Camera: the fitted camera
func DefaultCamera(bounds common.AABB) camera.Camera {
	cam := camera.NewCamera()
	if !bounds.Valid() {
		return cam
	}
	if diagonal := bounds.Diagonal(); diagonal > 0 {
		cam.SetFar(diagonal)
		cam.SetNear(diagonal / 50)
	}
	cam.Move(bounds.Center())
	return cam
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *scene) Load(meshes []model.Mesh, materials []material.Material, cam camera.Camera) error {
	if len(meshes) == 0 {
		return ErrIncompleteScene
	}
	for _, m := range meshes {
		if idx := m.MaterialIndex(); idx < 0 || idx >= len(materials) {
			return fmt.Errorf("mesh %q references material %d of %d: %w", m.Name(), idx, len(materials), ErrIncompleteScene)
		}
	}

	sorted := slices.Clone(meshes)
	slices.SortStableFunc(sorted, func(a, b model.Mesh) int {
		ba, bb := materials[a.MaterialIndex()].Blend(), materials[b.MaterialIndex()].Blend()
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	})

	bounds := common.EmptyAABB()
	for _, m := range sorted {
		b := m.Bounds()
		if b.Valid() {
			bounds.Extend(b.Min)
			bounds.Extend(b.Max)
		}
	}
	if !bounds.Valid() {
		bounds = common.AABB{}
	}
	if cam == nil {
		cam = DefaultCamera(bounds)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meshes = sorted
	s.materials = slices.Clone(materials)
	s.bounds = bounds
	s.cam = cam
	s.loaded = true
	return nil
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meshes = nil
	s.materials = nil
	s.bounds = common.AABB{}
	s.cam = camera.NewCamera()
	s.lights.Clear()
	s.loaded = false
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Meshes() []model.Mesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meshes
}

func (s *scene) Materials() []material.Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materials
}

func (s *scene) Material(i int) material.Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.materials) {
		return nil
	}
	return s.materials[i]
}

func (s *scene) Lights() light.PointLightList {
	return s.lights
}

func (s *scene) Ambient() light.AmbientLight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambient
}

func (s *scene) SetAmbient(a light.AmbientLight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient = a
}

func (s *scene) SkyColor() mgl32.Vec4 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skyColor
}

func (s *scene) SetSkyColor(c mgl32.Vec4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skyColor = c
}

func (s *scene) Bounds() common.AABB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bounds
}

func (s *scene) Update(dt float32) {
	s.lights.Update(dt, s.Bounds())
}
