package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"go.uber.org/zap"
)

const (
	gbufferPipeline             = "gbuffer"
	deferredAmbientPipeline     = "deferred_ambient"
	lightVolumePipeline         = "light_volume"
	deferredTransparentPipeline = "deferred_transparent"

	// gbufferTargets is the number of color attachments of the geometry pass.
	gbufferTargets = 4

	// bindings of the G-buffer read group after the four color targets
	gbufferDepthBinding   = 4
	gbufferLUTBinding     = 5
	gbufferSamplerBinding = 6

	lightVolumeSegments = 16
	lightVolumeRings    = 8
)

// gbufferTarget is one color attachment of the geometry pass.
type gbufferTarget struct {
	name   string
	format gpu.TextureFormat
}

var gbufferLayout = [gbufferTargets]gbufferTarget{
	{"gbuffer diffuse roughness", gpu.FormatRGBA8},
	{"gbuffer normal", gpu.FormatRG16F},
	{"gbuffer f0 metallic", gpu.FormatRGBA8},
	{"gbuffer emissive occlusion", gpu.FormatRGBA16F},
}

// deferredRenderer writes surface attributes into a G-buffer, then accumulates the ambient term
// with a fullscreen pass and each point light with a sphere volume covering its range.
// Transparent surfaces are drawn afterwards with the forward shader.
type deferredRenderer struct {
	*renderPass

	gbuffer   pipeline.Pipeline
	ambient   pipeline.Pipeline
	volume    pipeline.Pipeline
	forward   pipeline.Pipeline
	targets   [gbufferTargets]gpu.Texture
	depthCopy gpu.Texture
	sampler   gpu.Sampler
	readGroup bind_group_provider.BindGroupProvider
	sphere    *meshGeometry
}

var _ Renderer = &deferredRenderer{}

func (d *deferredRenderer) onInitialize() error {
	formats := make([]gpu.TextureFormat, gbufferTargets)
	for i, t := range gbufferLayout {
		formats[i] = t.format
	}

	var err error
	d.gbuffer, err = newSurfacePipeline(gbufferPipeline, gbufferWriteSource,
		pipeline.WithColorFormats(formats...),
		pipeline.WithDepthFormat(d.depthFormat),
		pipeline.WithState(gpu.StateDefault),
	)
	if err != nil {
		return err
	}
	d.ambient, err = newRenderPipeline(deferredAmbientPipeline, deferredAmbientSource, deferredAmbientSource,
		pipeline.WithColorFormats(FrameBufferFormat),
		pipeline.WithState(gpu.StateWriteRGB|gpu.StateWriteAlpha|gpu.StateCullNone),
	)
	if err != nil {
		return err
	}
	// back faces that lie behind the stored depth cover every lit pixel, including when the
	// camera is inside the volume
	d.volume, err = newRenderPipeline(lightVolumePipeline, deferredLightSource, deferredLightSource,
		pipeline.WithColorFormats(FrameBufferFormat),
		pipeline.WithDepthFormat(d.depthFormat),
		pipeline.WithState(gpu.StateBlendAdd|gpu.StateCullFront|gpu.StateDepthTestGreaterEqual|gpu.StateWriteRGB),
	)
	if err != nil {
		return err
	}
	d.forward, err = newForwardPipeline(deferredTransparentPipeline, d.depthFormat)
	if err != nil {
		return err
	}
	for _, p := range []pipeline.Pipeline{d.gbuffer, d.ambient, d.volume, d.forward} {
		if err := d.backend.RegisterPipeline(p); err != nil {
			return fmt.Errorf("register %q: %w", p.PipelineKey(), err)
		}
	}

	d.sampler, err = d.backend.CreateSampler(gpu.SamplerDescriptor{
		Label:   "gbuffer sampler",
		Filter:  gpu.FilterLinear,
		Address: gpu.AddressClamp,
	})
	if err != nil {
		return err
	}
	vertices, indices := model.UVSphere(1, lightVolumeSegments, lightVolumeRings)
	d.sphere, err = uploadGeometry(d.backend, "light volume", vertices, indices)
	if err != nil {
		return err
	}
	d.readGroup = bind_group_provider.NewBindGroupProvider("gbuffer",
		bind_group_provider.WithTexture(gbufferLUTBinding, d.materials.AlbedoLUT()),
		bind_group_provider.WithSampler(gbufferSamplerBinding, d.sampler),
	)
	return nil
}

func (d *deferredRenderer) onReset(width, height int) error {
	d.releaseTargets()

	var err error
	for i, t := range gbufferLayout {
		d.targets[i], err = d.backend.CreateTexture(gpu.TextureDescriptor{
			Label:  t.name,
			Width:  width,
			Height: height,
			Format: t.format,
			Usage:  gpu.TextureUsageRenderAttachment | gpu.TextureUsageSampled,
		})
		if err != nil {
			d.releaseTargets()
			return err
		}
		d.readGroup.SetTexture(i, d.targets[i])
	}
	d.depthCopy, err = d.backend.CreateTexture(gpu.TextureDescriptor{
		Label:  "gbuffer depth copy",
		Width:  width,
		Height: height,
		Format: d.depthFormat,
		Usage:  gpu.TextureUsageSampled | gpu.TextureUsageCopyDst,
	})
	if err != nil {
		d.releaseTargets()
		return err
	}
	d.readGroup.SetTexture(gbufferDepthBinding, d.depthCopy)
	return nil
}

func (d *deferredRenderer) releaseTargets() {
	for i, t := range d.targets {
		if t != nil {
			t.Release()
			d.targets[i] = nil
		}
	}
	if d.depthCopy != nil {
		d.depthCopy.Release()
		d.depthCopy = nil
	}
}

func (d *deferredRenderer) onRender(float32) error {
	if d.depthCopy == nil {
		// onReset already warned; show the sky until a later reset succeeds
		if err := d.backend.BeginPass(gpu.PassDescriptor{
			Label: "deferred fallback",
			Color: []gpu.ColorAttachment{{Texture: d.frame, Load: gpu.LoadClear, Clear: d.clearColor}},
		}); err != nil {
			return err
		}
		return d.backend.EndPass()
	}
	d.readGroup.SetTexture(gbufferLUTBinding, d.materials.AlbedoLUT())

	if err := d.geometryPass(); err != nil {
		return fmt.Errorf("geometry pass: %w", err)
	}
	if err := d.backend.CopyTexture(d.depth, d.depthCopy); err != nil {
		return fmt.Errorf("depth copy: %w", err)
	}
	if err := d.lightingPass(); err != nil {
		return fmt.Errorf("lighting pass: %w", err)
	}
	if err := d.transparentPass(); err != nil {
		return fmt.Errorf("transparent pass: %w", err)
	}
	return nil
}

func (d *deferredRenderer) geometryPass() error {
	desc := gpu.PassDescriptor{
		Label: "gbuffer",
		Depth: &gpu.DepthAttachment{Texture: d.depth, Load: gpu.LoadClear, Clear: 1},
	}
	for _, t := range d.targets {
		desc.Color = append(desc.Color, gpu.ColorAttachment{Texture: t, Load: gpu.LoadClear})
	}
	if err := d.backend.BeginPass(desc); err != nil {
		return err
	}
	_, err := d.drawSurfaces(d.gbuffer, gpu.StateDefault, opaqueSurfaces)
	return errors.Join(err, d.backend.EndPass())
}

// lightingPass clears the frame to the sky, adds ambient and emissive light for every covered
// pixel, then one volume per point light.
func (d *deferredRenderer) lightingPass() error {
	groups := []bind_group_provider.BindGroupProvider{d.viewGroup, d.readGroup, d.lightsProvider}

	if err := d.backend.BeginPass(gpu.PassDescriptor{
		Label: "deferred ambient",
		Color: []gpu.ColorAttachment{{Texture: d.frame, Load: gpu.LoadClear, Clear: d.clearColor}},
	}); err != nil {
		return err
	}
	err := d.backend.Draw(backend.DrawCall{Pipeline: deferredAmbientPipeline, Groups: groups, VertexCount: 3})
	if err = errors.Join(err, d.backend.EndPass()); err != nil {
		return err
	}

	count := d.lights.Count()
	if count == 0 {
		return nil
	}
	if err := d.backend.BeginPass(d.framePass("light volumes", gpu.LoadKeep, gpu.LoadKeep, true)); err != nil {
		return err
	}
	for i := range count {
		err = d.backend.Draw(backend.DrawCall{
			Pipeline:      lightVolumePipeline,
			Groups:        groups,
			Geometry:      d.sphere.provider,
			Instances:     1,
			FirstInstance: uint32(i),
		})
		if err != nil {
			break
		}
	}
	return errors.Join(err, d.backend.EndPass())
}

func (d *deferredRenderer) transparentPass() error {
	if err := d.backend.BeginPass(d.framePass("transparent", gpu.LoadKeep, gpu.LoadKeep, true)); err != nil {
		return err
	}
	drawn, err := d.drawSurfaces(d.forward, gpu.StateDefault, blendedSurfaces, d.lightsProvider)
	if drawn > 0 {
		d.logger.Debug("transparent surfaces drawn", zap.Int("count", drawn))
	}
	return errors.Join(err, d.backend.EndPass())
}

func (d *deferredRenderer) onShutdown() {
	d.releaseTargets()
	if d.readGroup != nil {
		d.readGroup.Release()
		d.readGroup = nil
	}
	if d.sphere != nil {
		d.sphere.release()
		d.sphere = nil
	}
	if d.sampler != nil {
		d.sampler.Release()
		d.sampler = nil
	}
}

func (d *deferredRenderer) buffers() []TextureBuffer {
	out := make([]TextureBuffer, 0, gbufferTargets+1)
	for i, t := range gbufferLayout {
		if d.targets[i] != nil {
			out = append(out, TextureBuffer{Name: t.name, Texture: d.targets[i]})
		}
	}
	return append(out, TextureBuffer{Name: "depth", Texture: d.depth})
}
