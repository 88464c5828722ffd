package ebiten

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"worldview/pkg/engine/viewport"
	"worldview/pkg/game/renderer"
	"worldview/pkg/game/scene"
	"worldview/pkg/game/session"
)

// Draw implements ebiten.Game.
func (h *Host) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)

	for _, id := range []string{renderer.ViewMain, renderer.ViewMinimap} {
		p, ok := h.panels[id]
		if !ok || p.canvas == nil || p.canvas.image() == nil {
			continue
		}
		s, ok := h.registry.Surface(id)
		if !ok || !s.Ready() || s.DeviceLost() {
			continue
		}
		dst := p.canvas.image()
		h.drawSurface(dst, s)

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(p.rect.Min.X), float64(p.rect.Min.Y))
		screen.DrawImage(dst, op)

		if id == renderer.ViewMinimap {
			vector.StrokeRect(screen, float32(p.rect.Min.X), float32(p.rect.Min.Y),
				float32(p.rect.Dx()), float32(p.rect.Dy()), 1, colorMinimapBorder, false)
		}
	}

	h.drawMessages(screen)
	h.drawStatusBar(screen)
	if h.backend.dev.Err() != nil {
		h.drawDeviceLost(screen)
	}
}

// drawSurface draws the three layers of s into its canvas image.
func (h *Host) drawSurface(dst *ebiten.Image, s *scene.Surface) {
	dst.Fill(s.Config().Background)
	for _, l := range s.Layers() {
		t := l.Transform()
		if !t.Valid() {
			continue
		}
		l.Root().WalkTopDown(func(n *scene.Node, x, y float64) {
			h.drawNode(dst, n, x, y, t, s.Config().TileSize)
		})
	}
}

// nodeEffects picks the effects the host knows how to draw.
func nodeEffects(n *scene.Node) (tint *Tint, outline *Outline) {
	for _, e := range n.Effects() {
		switch fx := e.(type) {
		case *Tint:
			tint = fx
		case *Outline:
			outline = fx
		}
	}
	return tint, outline
}

func (h *Host) drawNode(dst *ebiten.Image, n *scene.Node, x, y float64, t viewport.Transform, tileSize int) {
	sx, sy := t.Apply(x, y)
	w, ht := n.W*t.Scale, n.H*t.Scale
	tint, outline := nodeEffects(n)

	if img, ok := n.Texture.(*imageHandle); ok && img.img != nil {
		iw, ih := img.Size()
		if iw > 0 && ih > 0 && w > 0 && ht > 0 {
			op := &ebiten.DrawImageOptions{}
			op.GeoM.Scale(w/float64(iw), ht/float64(ih))
			op.GeoM.Translate(sx, sy)
			op.Filter = ebiten.FilterLinear
			if outline != nil && outline.shader != nil {
				sop := &ebiten.DrawRectShaderOptions{}
				sop.GeoM = op.GeoM
				sop.Images[0] = img.img
				sop.Uniforms = map[string]any{"Color": outline.uniform()}
				dst.DrawRectShader(iw, ih, outline.shader, sop)
			}
			tint.scale(&op.ColorScale)
			dst.DrawImage(img.img, op)
		}
	} else if n.Shape != scene.ShapeNone {
		c := tint.apply(n.Color)
		switch n.Shape {
		case scene.ShapeRect:
			vector.DrawFilledRect(dst, float32(sx), float32(sy), float32(w), float32(ht), c, false)
		case scene.ShapeCircle:
			r := min(w, ht) / 2 * 0.8
			vector.DrawFilledCircle(dst, float32(sx+w/2), float32(sy+ht/2), float32(r), c, true)
		case scene.ShapeLine:
			stroke := max(n.Stroke*t.Scale, 1)
			vector.StrokeLine(dst, float32(sx), float32(sy), float32(sx+w), float32(sy+ht), float32(stroke), c, false)
		}
		if outline != nil {
			vector.StrokeRect(dst, float32(sx), float32(sy), float32(w), float32(ht), outline.Width, outline.Color, false)
		}
	}

	if n.Text != "" {
		h.drawLabel(dst, n, sx, sy, t.Scale, tileSize)
	}
}

// drawLabel centres a node's text over its parent sprite.
func (h *Host) drawLabel(dst *ebiten.Image, n *scene.Node, sx, sy, scale float64, tileSize int) {
	size := labelSize(tileSize, scale)
	if size < minLabelSize {
		return
	}
	face := h.fonts.labelFace(size)
	width := n.W * scale
	if p := n.Parent(); p != nil && width == 0 {
		width = p.W * scale
	}
	tx := sx + (width-textWidth(n.Text, face))/2
	h.drawColoredTextWithFace(dst, n.Text, tx, sy-face.Size, n.TextColor, face)
}

// drawStatusBar draws the connection state, map name and view state along
// the bottom of the window.
func (h *Host) drawStatusBar(screen *ebiten.Image) {
	top := float32(h.outH - statusBarHeight)
	vector.DrawFilledRect(screen, 0, top, float32(h.outW), statusBarHeight, colorPanelBackground, false)

	y := float64(top) + 6
	if h.router.Connected() {
		vector.DrawFilledCircle(screen, 14, top+statusBarHeight/2, 5, colorConnected, true)
		h.drawColoredText(screen, "STATUS_ONLINE", 26, y, colorText)
	} else {
		vector.DrawFilledCircle(screen, 14, top+statusBarHeight/2, 5, colorOffline, true)
		h.drawColoredText(screen, "STATUS_OFFLINE", 26, y, colorText)
	}

	var info string
	if m := h.router.LastMap(); m != nil {
		info = fmt.Sprintf("%s  %dx%d", m.Name, m.Width, m.Height)
	} else {
		info = dynamicGet("STATUS_NO_MAP")
	}
	if s, ok := h.registry.Surface(renderer.ViewMain); ok {
		info += fmt.Sprintf("  %s %d", dynamicGet("STATUS_ENTITIES"), s.Entities().Len())
	}
	if h.router.Follow() {
		info += "  " + dynamicGet("STATUS_FOLLOW")
	}
	if h.loading {
		info += "  " + dynamicGet("STATUS_LOADING")
	}
	h.drawColoredTextWithFace(screen, info, 140, y, colorSubtle, h.fonts.sansFace())
}

// drawMessages draws the notification pane above the status bar, newest at
// the bottom.
func (h *Host) drawMessages(screen *ebiten.Image) {
	face := h.fonts.sansFace()
	lineHeight := face.Size + 6
	y := float64(h.outH-statusBarHeight) - messagesPadding - lineHeight*float64(len(h.messages))
	for _, m := range h.messages {
		col := color.Color(colorText)
		if m.Kind == session.KindSystem {
			col = colorSystem
		}
		h.drawColoredText(screen, m.Text, messagesPadding, y, applyAlpha(col, m.Alpha))
		y += lineHeight
	}
}

// drawDeviceLost draws a pulsing banner while the device is lost.
func (h *Host) drawDeviceLost(screen *ebiten.Image) {
	face := h.fonts.sansBoldFace()
	msg := dynamicGet("DEVICE_LOST")
	w := textWidth(msg, face)
	x := (float64(h.outW) - w) / 2
	y := float64(h.outH-statusBarHeight) / 2
	vector.DrawFilledRect(screen, float32(x-12), float32(y-6), float32(w+24), float32(face.Size*2+12), colorPanelBackground, false)
	h.drawColoredTextWithFace(screen, msg, x, y, pulsingColor(colorDeviceLost, h.now()), face)
}
