package tray

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"runtime"

	ico "github.com/sergeymakinen/go-ico"
)

const iconSize = 22

type iconKind int

const (
	iconUnknown iconKind = iota
	iconGood
	iconWeak
	iconBad
)

var iconColors = map[iconKind]color.NRGBA{
	iconUnknown: {R: 0x95, G: 0xa5, B: 0xa6, A: 0xff},
	iconGood:    {R: 0x2e, G: 0xcc, B: 0x71, A: 0xff},
	iconWeak:    {R: 0xf1, G: 0xc4, B: 0x0f, A: 0xff},
	iconBad:     {R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff},
}

// renderIcons draws the four status discs at startup. Rendering at runtime
// keeps binary assets out of the repo; the tray gets ICO bytes on windows
// and PNG everywhere else.
func renderIcons() (map[iconKind][]byte, error) {
	icons := make(map[iconKind][]byte, len(iconColors))
	for kind, fill := range iconColors {
		data, err := encodeIcon(runtime.GOOS, drawDisc(fill))
		if err != nil {
			return nil, fmt.Errorf("render tray icon: %w", err)
		}
		icons[kind] = data
	}

	return icons, nil
}

func drawDisc(fill color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	center := float64(iconSize-1) / 2
	radius := float64(iconSize)/2 - 1

	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx := float64(x) - center
			dy := float64(y) - center
			if dx*dx+dy*dy <= radius*radius {
				img.SetNRGBA(x, y, fill)
			}
		}
	}

	return img
}

func encodeIcon(goos string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if goos == "windows" {
		if err := ico.Encode(&buf, img); err != nil {
			return nil, err
		}
	} else {
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
