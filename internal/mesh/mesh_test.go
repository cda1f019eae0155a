package mesh

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Triangle(t *testing.T) {
	g, err := Extract(strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), FormatOBJ)
	require.NoError(t, err)

	assert.Len(t, g.Vertices, 3)
	assert.Len(t, g.Faces, 1)
	assert.Equal(t, []string{"1", "2", "3"}, g.Faces[0])
	assert.Equal(t, Vec3{0, 0, 0}, g.BoundingBox.Min)
	assert.Equal(t, Vec3{1, 1, 0}, g.BoundingBox.Max)
	assert.Equal(t, Vec3{1, 1, 0}, g.Dimensions)
	assert.Equal(t, Vec3{0.5, 0.5, 0}, g.Center)
}

func TestExtract_AllRecordTypes(t *testing.T) {
	src := strings.Join([]string{
		"# exported model",
		"mtllib chair.mtl",
		"o chair",
		"v -1.5 2 3 1.0",
		"v 4 -5 6 0.2 0.3 0.4",
		"vt 0.5 0.25",
		"vt 1 0",
		"vn 0 0 1",
		"usemtl wood",
		"f 1/1/1 2/2/1 1/1/1",
		"f 1//1 2//1 2//1",
		"",
	}, "\r\n")

	g, err := Extract(strings.NewReader(src), FormatOBJ)
	require.NoError(t, err)

	assert.Len(t, g.Vertices, 2)
	assert.Len(t, g.TextureCoords, 2)
	assert.Equal(t, []string{"chair.mtl"}, g.Materials)
	require.Len(t, g.Faces, 2)
	assert.Equal(t, []string{"1/1/1", "2/2/1", "1/1/1"}, g.Faces[0])
	assert.Equal(t, Vec3{-1.5, -5, 3}, g.BoundingBox.Min)
	assert.Equal(t, Vec3{4, 2, 6}, g.BoundingBox.Max)
	assert.Equal(t, Vec3{5.5, 7, 3}, g.Dimensions)
}

func TestExtract_SkipsMalformedLines(t *testing.T) {
	src := "v 1 2\nv a b c\nv 1 2 3\nv NaN 0 0\nf\nf 1 2 3\nvt\n"
	g, err := Extract(strings.NewReader(src), FormatOBJ)
	require.NoError(t, err)

	assert.Len(t, g.Vertices, 1)
	assert.Len(t, g.Faces, 1)
	assert.Empty(t, g.TextureCoords)
}

func TestExtract_VertexCountMatchesValidLines(t *testing.T) {
	cases := map[string]int{
		"":                                      0,
		"v 0 0 0\n":                             1,
		"v 0 0 0\nv 1 1 1\nvn 0 0 1\nvt 0 0\n": 2,
		" v 0 0 0\nv 2 2 2\n":                   1,
		"v 1 1 1\nv 2 2 2\nv 3 3 3\nv 4 4 4\n":  4,
	}
	for src, want := range cases {
		g, err := Extract(strings.NewReader(src), FormatOBJ)
		require.NoError(t, err)
		assert.Len(t, g.Vertices, want, "input %q", src)
	}
}

func TestExtract_BoundsOrdered(t *testing.T) {
	src := "v 3 -1 7\nv -2 8 0\nv 0.5 0.5 -9\nv 10 -10 1\n"
	g, err := Extract(strings.NewReader(src), FormatOBJ)
	require.NoError(t, err)

	bb := g.BoundingBox
	assert.LessOrEqual(t, bb.Min.X, bb.Max.X)
	assert.LessOrEqual(t, bb.Min.Y, bb.Max.Y)
	assert.LessOrEqual(t, bb.Min.Z, bb.Max.Z)
	for _, v := range g.Vertices {
		assert.True(t, v.X >= bb.Min.X && v.X <= bb.Max.X)
		assert.True(t, v.Y >= bb.Min.Y && v.Y <= bb.Max.Y)
		assert.True(t, v.Z >= bb.Min.Z && v.Z <= bb.Max.Z)
	}
}

func TestExtract_NoVerticesLeavesZeroBox(t *testing.T) {
	g, err := Extract(strings.NewReader("f 1 2 3\n"), FormatOBJ)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{}, g.BoundingBox)
	assert.Equal(t, Vec3{}, g.Center)
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	for _, f := range []Format{FormatGLB, FormatGLTF, FormatFBX, FormatSTL, FormatPLY, "dae"} {
		_, err := Extract(strings.NewReader("v 0 0 0\n"), f)
		assert.True(t, errors.Is(err, ErrUnsupportedFormat), "format %s", f)
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatOBJ, ParseFormat(".OBJ"))
	assert.Equal(t, FormatGLB, ParseFormat("glb"))
	assert.True(t, IsKnown(ParseFormat(".stl")))
	assert.False(t, IsKnown(ParseFormat(".png")))
}

func TestExtract_SkipsOversizedLines(t *testing.T) {
	long := "# " + strings.Repeat("x", 2*maxLineBytes)
	longFace := "f " + strings.Repeat("1 ", maxLineBytes)
	src := "v 0 0 0\n" + long + "\nv 1 0 0\n" + longFace + "\nv 0 1 0\nf 1 2 3\n"

	g, err := Extract(strings.NewReader(src), FormatOBJ)
	require.NoError(t, err)
	assert.Len(t, g.Vertices, 3)
	require.Len(t, g.Faces, 1)
	assert.Equal(t, []string{"1", "2", "3"}, g.Faces[0])
}

func TestExtract_LastLineWithoutNewline(t *testing.T) {
	g, err := Extract(strings.NewReader("v 0 0 0\nv 2 2 2"), FormatOBJ)
	require.NoError(t, err)
	assert.Len(t, g.Vertices, 2)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestExtract_ReadError(t *testing.T) {
	_, err := Extract(failingReader{}, FormatOBJ)
	assert.ErrorContains(t, err, "disk gone")
}
