// Package planparse reads plan descriptors (kind, pixel size and origin) from
// raster and SVG floor-plan files.
package planparse

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/starford/geoplan/internal/models"
)

// ErrUnsupported is returned for files that are not plan images.
var ErrUnsupported = errors.New("planparse: unsupported plan format")

// Result describes a plan background.
type Result struct {
	Kind    string
	Name    string
	Width   float64
	Height  float64
	OriginX float64
	OriginY float64
}

var rasterExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

// Supported reports whether path has a plan file extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".svg" || rasterExt[ext]
}

// Parse inspects data, using the extension of path to choose the decoder.
func Parse(path string, data []byte) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch {
	case ext == ".svg":
		res, err := parseSVG(data)
		if err != nil {
			return nil, err
		}
		if res.Name == "" {
			res.Name = name
		}
		return res, nil
	case rasterExt[ext]:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("planparse: decode %s: %w", path, err)
		}
		return &Result{
			Kind:   models.PlanRaster,
			Name:   name,
			Width:  float64(cfg.Width),
			Height: float64(cfg.Height),
		}, nil
	}
	return nil, ErrUnsupported
}

type svgRoot struct {
	XMLName xml.Name `xml:"svg"`
	Width   string   `xml:"width,attr"`
	Height  string   `xml:"height,attr"`
	ViewBox string   `xml:"viewBox,attr"`
	Title   string   `xml:"title"`
}

// parseSVG prefers the viewBox, whose min-x/min-y become the origin offset.
// Without a viewBox the width/height attributes are used with a zero origin.
func parseSVG(data []byte) (*Result, error) {
	var root svgRoot
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, fmt.Errorf("planparse: svg: %w", err)
	}
	res := &Result{Kind: models.PlanVector, Name: strings.TrimSpace(root.Title)}

	if vb := strings.Fields(strings.ReplaceAll(root.ViewBox, ",", " ")); len(vb) == 4 {
		var nums [4]float64
		for i, f := range vb {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("planparse: svg viewBox %q: %w", root.ViewBox, err)
			}
			nums[i] = v
		}
		res.OriginX, res.OriginY, res.Width, res.Height = nums[0], nums[1], nums[2], nums[3]
	} else {
		w, werr := parseLength(root.Width)
		h, herr := parseLength(root.Height)
		if werr != nil || herr != nil {
			return nil, fmt.Errorf("planparse: svg has neither viewBox nor numeric width/height")
		}
		res.Width, res.Height = w, h
	}

	if res.Width <= 0 || res.Height <= 0 {
		return nil, fmt.Errorf("planparse: svg has empty size %vx%v", res.Width, res.Height)
	}
	return res, nil
}

// parseLength accepts plain numbers and px lengths.
func parseLength(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	if s == "" {
		return 0, errors.New("empty length")
	}
	return strconv.ParseFloat(s, 64)
}
