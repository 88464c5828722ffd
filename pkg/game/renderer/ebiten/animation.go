package ebiten

import (
	"image/color"
	"math"
	"time"
)

// pulse returns a value between lo and hi that follows a sine wave with the
// given period.
func pulse(now time.Time, period time.Duration, lo, hi float64) float64 {
	phase := float64(now.UnixMilli()%period.Milliseconds()) / float64(period.Milliseconds())
	v := (math.Sin(phase*2*math.Pi) + 1.0) / 2.0
	return lo + (hi-lo)*v
}

// pulsingColor scales the RGB channels of base by a 2 second pulse between
// 50% and 100% brightness. Alpha is left alone.
func pulsingColor(base color.RGBA, now time.Time) color.RGBA {
	brightness := pulse(now, 2*time.Second, 0.5, 1.0)
	return color.RGBA{
		R: uint8(float64(base.R) * brightness),
		G: uint8(float64(base.G) * brightness),
		B: uint8(float64(base.B) * brightness),
		A: base.A,
	}
}
