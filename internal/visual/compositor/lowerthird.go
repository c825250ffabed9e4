/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package compositor

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Lower-third layout constants, ported from the original visual
// module's chyron grammar: accent stripe + rounded name tag + an
// optional second bar for the active headline.
const (
	ltMarginLeft     = 80
	ltMarginBottom   = 100
	ltBarHeight      = 70
	ltNameBarWidth   = 350
	ltHeadlineWidth  = 900
	ltHeadlineHeight = 45
	ltBarRadius      = 8
	ltAccentWidth    = 6
	ltMaxHeadline    = 60
)

var (
	ltBarColor     = color.NRGBA{20, 20, 40, 200}
	ltAccentColor  = color.NRGBA{220, 50, 50, 255}
	ltNameColor    = color.NRGBA{255, 255, 255, 255}
	ltHeadlineColor = color.NRGBA{200, 200, 200, 255}
)

// drawLowerThird overlays a speaker name tag and/or headline bar onto
// frame in place. A nil/empty speakerName and headline is a no-op.
func drawLowerThird(frame *image.RGBA, speakerName, headline string) {
	if speakerName == "" && headline == "" {
		return
	}

	h := frame.Bounds().Dy()
	yBase := h - ltMarginBottom - ltBarHeight

	if speakerName != "" {
		drawNameBar(frame, speakerName, yBase)
	}
	if headline != "" {
		drawHeadlineBar(frame, headline, yBase+ltBarHeight+8)
	}
}

func drawNameBar(frame *image.RGBA, name string, y int) {
	x := ltMarginLeft
	fillRect(frame, x, y, x+ltAccentWidth, y+ltBarHeight, ltAccentColor)
	fillRoundedRect(frame, x+ltAccentWidth, y, x+ltNameBarWidth, y+ltBarHeight, ltBarRadius, ltBarColor)

	textY := y + ltBarHeight/2 + 5
	drawText(frame, x+ltAccentWidth+20, textY, upper(name), ltNameColor)
}

func drawHeadlineBar(frame *image.RGBA, text string, y int) {
	x := ltMarginLeft
	fillRoundedRect(frame, x, y, x+ltHeadlineWidth, y+ltHeadlineHeight, ltBarRadius, ltBarColor)

	display := text
	if len(display) > ltMaxHeadline {
		display = display[:ltMaxHeadline] + "..."
	}
	textY := y + ltHeadlineHeight/2 + 5
	drawText(frame, x+20, textY, display, ltHeadlineColor)
}

func fillRect(frame *image.RGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	rect := image.Rect(x0, y0, x1, y1).Intersect(frame.Bounds())
	draw.Draw(frame, rect, &image.Uniform{C: c}, image.Point{}, draw.Over)
}

// fillRoundedRect fills the rect pixel by pixel, skipping the pixels
// in each corner box that lie outside a circle of the given radius
// centred radius pixels in from that corner.
func fillRoundedRect(frame *image.RGBA, x0, y0, x1, y1, radius int, c color.NRGBA) {
	rect := image.Rect(x0, y0, x1, y1).Intersect(frame.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if cornerClipped(x, y, x0, y0, x1, y1, radius) {
				continue
			}
			frame.SetNRGBA(x, y, c)
		}
	}
}

func cornerClipped(x, y, x0, y0, x1, y1, radius int) bool {
	if radius <= 0 {
		return false
	}
	corners := [4][2]int{{x0 + radius, y0 + radius}, {x1 - radius, y0 + radius}, {x0 + radius, y1 - radius}, {x1 - radius, y1 - radius}}
	inCornerBox := (x < x0+radius || x > x1-radius) && (y < y0+radius || y > y1-radius)
	if !inCornerBox {
		return false
	}
	// Find the nearest corner center and test the circle.
	best := corners[0]
	bestDist := -1
	for _, c := range corners {
		dx, dy := x-c[0], y-c[1]
		d := dx*dx + dy*dy
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	dx, dy := x-best[0], y-best[1]
	return dx*dx+dy*dy > radius*radius
}

func drawText(frame *image.RGBA, x, y int, text string, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  frame,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
