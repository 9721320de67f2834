package components

import (
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

// upperHalf draws the top pixel in the foreground and the bottom pixel in
// the background, packing two image rows into one terminal row
const upperHalf = "▀"

// RenderImage draws img into a cols x rows block of half-block cells.
// The picture is letterboxed to keep its aspect ratio.
func RenderImage(img image.Image, cols, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return Placeholder(cols, rows, "")
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Placeholder(cols, rows, "")
	}

	// Each cell is roughly twice as tall as it is wide, and holds two pixels
	pxW, pxH := cols, rows*2
	scale := min(float64(pxW)/float64(b.Dx()), float64(pxH)/float64(b.Dy()))
	dw := max(1, int(float64(b.Dx())*scale))
	dh := max(1, int(float64(b.Dy())*scale))

	dst := image.NewRGBA(image.Rect(0, 0, pxW, pxH))
	offX, offY := (pxW-dw)/2, (pxH-dh)/2
	draw.ApproxBiLinear.Scale(dst, image.Rect(offX, offY, offX+dw, offY+dh), img, b, draw.Src, nil)

	var sb strings.Builder
	for y := 0; y < pxH; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < pxW; x++ {
			top := dst.RGBAAt(x, y)
			bottom := dst.RGBAAt(x, y+1)
			if top.A == 0 && bottom.A == 0 {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteString(lipgloss.NewStyle().
				Foreground(hex(top)).
				Background(hex(bottom)).
				Render(upperHalf))
		}
	}
	return sb.String()
}

// Placeholder fills a cols x rows block, with glyph centered on the middle row
func Placeholder(cols, rows int, glyph string) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	blank := strings.Repeat(" ", cols)
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = blank
	}
	if glyph != "" {
		w := lipgloss.Width(glyph)
		if w <= cols {
			pad := (cols - w) / 2
			lines[rows/2] = strings.Repeat(" ", pad) + glyph + strings.Repeat(" ", cols-w-pad)
		}
	}
	return strings.Join(lines, "\n")
}

func hex(c color.RGBA) lipgloss.Color {
	const digits = "0123456789abcdef"
	buf := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		buf[1+i*2] = digits[v>>4]
		buf[2+i*2] = digits[v&0x0f]
	}
	return lipgloss.Color(string(buf))
}
