package content

import (
	"net/url"
	"path"
	"strings"
)

// MinImageDimension is the smallest natural and rendered size (both axes)
// for which the image save affordance is offered.
const MinImageDimension = 50

// rasterExts are the filename extensions eligible for the save affordance.
var rasterExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// Image describes an image element on the page. A distinct Image value
// exists per element: two elements showing the same URL are separate images.
type Image struct {
	Src       string
	NaturalW  int
	NaturalH  int
	RenderedW int
	RenderedH int
}

// Eligible reports whether the image qualifies for the save affordance: at
// least 50×50 in both natural and rendered size, with a raster extension.
func (img *Image) Eligible() bool {
	if img.NaturalW < MinImageDimension || img.NaturalH < MinImageDimension {
		return false
	}
	if img.RenderedW < MinImageDimension || img.RenderedH < MinImageDimension {
		return false
	}
	return img.Ext() != ""
}

// Ext returns the image's lowercased filename extension without the dot, or
// "" when the extension is not a recognized raster format.
func (img *Image) Ext() string {
	p := img.Src
	if u, err := url.Parse(img.Src); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if _, ok := rasterExts[ext]; !ok {
		return ""
	}
	return ext
}
