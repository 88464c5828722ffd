package ebiten

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"

	"worldview/pkg/game/scene"
)

// SupportedClasses are the device classes effects are prepared on.
var SupportedClasses = []string{"opengl", "directx", "metal"}

// Tint multiplies a node's colours by Color.
type Tint struct {
	Color color.RGBA
}

// NewTint creates a tint effect.
func NewTint(c color.RGBA) *Tint { return &Tint{Color: c} }

func (t *Tint) Name() string { return "tint" }

func (t *Tint) Prepare(d scene.Device) error {
	if t.Color.A == 0 {
		return errors.New("tint: transparent colour")
	}
	return d.Err()
}

func (t *Tint) Release() {}

func (t *Tint) scale(cs *ebiten.ColorScale) {
	if t != nil {
		cs.ScaleWithColor(t.Color)
	}
}

// apply multiplies c by the tint.
func (t *Tint) apply(c color.RGBA) color.RGBA {
	if t == nil {
		return c
	}
	return color.RGBA{
		R: uint8(uint16(c.R) * uint16(t.Color.R) / 255),
		G: uint8(uint16(c.G) * uint16(t.Color.G) / 255),
		B: uint8(uint16(c.B) * uint16(t.Color.B) / 255),
		A: uint8(uint16(c.A) * uint16(t.Color.A) / 255),
	}
}

// outlineShader draws Color around the opaque pixels of the source image.
var outlineShader = []byte(`//kage:unit pixels

package main

var Color vec4

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	if c.a > 0 {
		return c
	}
	a := imageSrc0At(srcPos+vec2(1, 0)).a +
		imageSrc0At(srcPos-vec2(1, 0)).a +
		imageSrc0At(srcPos+vec2(0, 1)).a +
		imageSrc0At(srcPos-vec2(0, 1)).a
	if a > 0 {
		return Color
	}
	return vec4(0)
}
`)

// Outline draws a coloured border round a node. Textured nodes use a
// shader compiled on Prepare; shapes get a stroked rectangle.
type Outline struct {
	Color  color.RGBA
	Width  float32
	shader *ebiten.Shader
}

// NewOutline creates an outline effect.
func NewOutline(c color.RGBA) *Outline { return &Outline{Color: c, Width: 2} }

func (o *Outline) Name() string { return "outline" }

func (o *Outline) Prepare(d scene.Device) error {
	if err := d.Err(); err != nil {
		return err
	}
	if o.shader != nil {
		return nil
	}
	s, err := ebiten.NewShader(outlineShader)
	if err != nil {
		return fmt.Errorf("outline shader: %w", err)
	}
	o.shader = s
	return nil
}

func (o *Outline) Release() {
	if o.shader != nil {
		o.shader.Deallocate()
		o.shader = nil
	}
}

func (o *Outline) uniform() []float32 {
	return []float32{
		float32(o.Color.R) / 255,
		float32(o.Color.G) / 255,
		float32(o.Color.B) / 255,
		float32(o.Color.A) / 255,
	}
}
