package titlecard

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const subtitle_scale = 0.45

type Card struct {
	Title    string
	Subtitle string
}

type Style struct {
	Width      int
	Height     int
	FontFile   string
	Background string
	Foreground string
	Size       float64
}

// Render draws a card with the title centered and the subtitle below it, and
// writes it as PNG to outputFilePath.
func Render(card Card, style Style, outputFilePath string) error {

	// Load font
	ttf, err := loadFont(style.FontFile)
	if err != nil {
		return err
	}
	background, err := ParseHexColor(style.Background)
	if err != nil {
		return err
	}
	foreground, err := ParseHexColor(style.Foreground)
	if err != nil {
		return err
	}

	// Fill background
	img := image.NewRGBA(image.Rect(0, 0, style.Width, style.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	// Draw title, then subtitle beneath it
	titleFace := truetype.NewFace(ttf, &truetype.Options{
		Size:    style.Size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer titleFace.Close()
	baseline := style.Height / 2
	if card.Subtitle != "" {
		baseline = style.Height/2 - int(style.Size*subtitle_scale)
	}
	drawCentered(img, titleFace, foreground, card.Title, baseline)

	if card.Subtitle != "" {
		subFace := truetype.NewFace(ttf, &truetype.Options{
			Size:    style.Size * subtitle_scale,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		defer subFace.Close()
		drawCentered(img, subFace, foreground, card.Subtitle, baseline+int(style.Size))
	}

	// Write final image to file
	if err := os.MkdirAll(filepath.Dir(outputFilePath), os.ModePerm); err != nil {
		return err
	}
	out, err := os.Create(outputFilePath)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func drawCentered(img *image.RGBA, face font.Face, col color.Color, label string, baseline int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
	}
	width := d.MeasureString(label)
	x := (fixed.I(img.Bounds().Dx()) - width) / 2
	if x < 0 {
		x = 0
	}
	d.Dot = fixed.Point26_6{X: x, Y: fixed.I(baseline)}
	d.DrawString(label)
}

func loadFont(fontFile string) (*truetype.Font, error) {
	data := goregular.TTF
	if fontFile != "" {
		var err error
		data, err = os.ReadFile(fontFile)
		if err != nil {
			return nil, err
		}
	}
	ttf, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return ttf, nil
}

// ParseHexColor accepts #rgb and #rrggbb.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
