// Package mesh extracts geometry summaries from 3D model files.
package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Format is a 3D file format tag, usually the lower-cased file extension without the dot.
type Format string

const (
	FormatOBJ  Format = "obj"
	FormatGLTF Format = "gltf"
	FormatGLB  Format = "glb"
	FormatFBX  Format = "fbx"
	FormatSTL  Format = "stl"
	FormatPLY  Format = "ply"
)

// Known lists every format accepted for upload. Only OBJ can be parsed.
var Known = []Format{FormatOBJ, FormatGLTF, FormatGLB, FormatFBX, FormatSTL, FormatPLY}

// ErrUnsupportedFormat is returned for formats the extractor cannot parse.
var ErrUnsupportedFormat = errors.New("unsupported format")

const maxLineBytes = 1 << 20

// Vec3 is a point or extent in model space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// BoundingBox is the axis-aligned box enclosing all vertices.
type BoundingBox struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// Geometry is the result of parsing a model file.
type Geometry struct {
	Vertices      []Vec3
	Faces         [][]string // raw face tokens, e.g. "1/1/1"; not resolved to vertices
	TextureCoords [][]float64
	Materials     []string // mtllib references
	BoundingBox   BoundingBox
	Dimensions    Vec3
	Center        Vec3
}

// ParseFormat normalizes an extension such as ".OBJ" into a Format.
func ParseFormat(ext string) Format {
	return Format(strings.ToLower(strings.TrimPrefix(ext, ".")))
}

// IsKnown reports whether f is one of the accepted model formats.
func IsKnown(f Format) bool {
	for _, k := range Known {
		if k == f {
			return true
		}
	}
	return false
}

// Extract parses r according to format. It has no side effects beyond reading r.
func Extract(r io.Reader, format Format) (*Geometry, error) {
	switch format {
	case FormatOBJ:
		return extractOBJ(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// extractOBJ tokenizes Wavefront OBJ line by line. Lines it cannot parse are skipped,
// and so are lines longer than maxLineBytes.
func extractOBJ(r io.Reader) (*Geometry, error) {
	g := &Geometry{}
	br := bufio.NewReaderSize(r, 64*1024)

	var line []byte
	oversized := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read obj: %w", err)
		}
		if !oversized && len(line)+len(chunk) > maxLineBytes {
			oversized, line = true, line[:0]
		}
		if !oversized {
			line = append(line, chunk...)
		}
		if isPrefix {
			continue
		}
		if !oversized {
			g.parseLine(string(line))
		}
		line, oversized = line[:0], false
	}

	g.computeBounds()
	return g, nil
}

func (g *Geometry) parseLine(line string) {
	line = strings.TrimRight(line, "\r")
	switch {
	case strings.HasPrefix(line, "v "):
		if v, ok := parseVec3(strings.Fields(line[2:])); ok {
			g.Vertices = append(g.Vertices, v)
		}
	case strings.HasPrefix(line, "vt "):
		if tc, ok := parseFloats(strings.Fields(line[3:])); ok && len(tc) > 0 {
			g.TextureCoords = append(g.TextureCoords, tc)
		}
	case strings.HasPrefix(line, "f "):
		if tokens := strings.Fields(line[2:]); len(tokens) > 0 {
			g.Faces = append(g.Faces, tokens)
		}
	case strings.HasPrefix(line, "mtllib "):
		if ref := strings.TrimSpace(line[len("mtllib "):]); ref != "" {
			g.Materials = append(g.Materials, ref)
		}
	}
}

func (g *Geometry) computeBounds() {
	if len(g.Vertices) == 0 {
		return
	}
	lo := Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range g.Vertices {
		lo = Vec3{math.Min(lo.X, v.X), math.Min(lo.Y, v.Y), math.Min(lo.Z, v.Z)}
		hi = Vec3{math.Max(hi.X, v.X), math.Max(hi.Y, v.Y), math.Max(hi.Z, v.Z)}
	}
	g.BoundingBox = BoundingBox{Min: lo, Max: hi}
	g.Dimensions = Vec3{hi.X - lo.X, hi.Y - lo.Y, hi.Z - lo.Z}
	g.Center = Vec3{(lo.X + hi.X) / 2, (lo.Y + hi.Y) / 2, (lo.Z + hi.Z) / 2}
}

// parseVec3 reads the first three components; a fourth (w) or vertex colours are ignored.
func parseVec3(fields []string) (Vec3, bool) {
	if len(fields) < 3 {
		return Vec3{}, false
	}
	xyz, ok := parseFloats(fields[:3])
	if !ok {
		return Vec3{}, false
	}
	return Vec3{xyz[0], xyz[1], xyz[2]}, true
}

func parseFloats(fields []string) ([]float64, bool) {
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
