package scene

import (
	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// ShowcaseGrid is the number of spheres per side of the showcase material grid.
const ShowcaseGrid = 5

// LoadShowcase fills s with a procedural test scene built from primitives: a floor, a grid of
// spheres sweeping metallic along X and roughness along Z, opaque and emissive cubes and a
// double-sided blended glass pane. The camera looks at the grid from the front.
//
// Parameters:
//   - s: the scene to load
//
// Returns:
//   - error: any error from Load
func LoadShowcase(s Scene) error {
	materials := []material.Material{
		material.NewMaterial(material.WithName("floor"),
			material.WithBaseColor(mgl32.Vec4{0.5, 0.5, 0.5, 1}),
			material.WithMetallic(0),
			material.WithRoughness(0.8)),
		material.NewMaterial(material.WithName("box"),
			material.WithBaseColor(common.ColorFromRGBA8(0xb87333ff)),
			material.WithMetallic(1),
			material.WithRoughness(0.35)),
		material.NewMaterial(material.WithName("lamp"),
			material.WithBaseColor(mgl32.Vec4{0.05, 0.05, 0.05, 1}),
			material.WithMetallic(0),
			material.WithEmissive(mgl32.Vec3{4, 3, 1.5})),
		material.NewMaterial(material.WithName("glass"),
			material.WithBaseColor(mgl32.Vec4{0.6, 0.8, 1, 0.3}),
			material.WithMetallic(0),
			material.WithRoughness(0.05),
			material.WithBlend(),
			material.WithDoubleSided()),
	}

	fv, fi := model.Plane(24, 24, 8)
	cv, ci := model.Cube(1)
	meshes := []model.Mesh{
		model.NewMesh(model.WithName("glass"), model.WithGeometry(cv, ci), model.WithMaterialIndex(3),
			model.WithTransform(mgl32.Translate3D(0, 1.5, -3).Mul4(mgl32.Scale3D(6, 3, 0.05)))),
		model.NewMesh(model.WithName("floor"), model.WithGeometry(fv, fi), model.WithMaterialIndex(0)),
		model.NewMesh(model.WithName("box"), model.WithGeometry(cv, ci), model.WithMaterialIndex(1),
			model.WithTransform(mgl32.Translate3D(-7, 1, 4).Mul4(mgl32.Scale3D(2, 2, 2)))),
		model.NewMesh(model.WithName("lamp"), model.WithGeometry(cv, ci), model.WithMaterialIndex(2),
			model.WithTransform(mgl32.Translate3D(7, 0.5, 4))),
	}

	sv, si := model.UVSphere(0.5, 32, 16)
	const spacing = 1.5
	offset := -spacing * float32(ShowcaseGrid-1) / 2
	for x := range ShowcaseGrid {
		for z := range ShowcaseGrid {
			materials = append(materials, material.NewMaterial(
				material.WithName("sphere"),
				material.WithBaseColor(mgl32.Vec4{0.9, 0.1, 0.1, 1}),
				material.WithMetallic(float32(x)/float32(ShowcaseGrid-1)),
				material.WithRoughness(float32(z)/float32(ShowcaseGrid-1)),
			))
			meshes = append(meshes, model.NewMesh(
				model.WithName("sphere"),
				model.WithGeometry(sv, si),
				model.WithMaterialIndex(len(materials)-1),
				model.WithTransform(mgl32.Translate3D(offset+float32(x)*spacing, 0.5, offset+float32(z)*spacing)),
			))
		}
	}

	cam := camera.NewCamera(
		camera.WithNear(0.1),
		camera.WithFar(60),
		camera.WithLookAt(mgl32.Vec3{0, 5, -12}, mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{0, 1, 0}),
	)
	return s.Load(meshes, materials, cam)
}
