package reader

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/swr06/Lensing/asset"
	"github.com/swr06/Lensing/asset/compiler"
	"github.com/swr06/Lensing/asset/compiler/input"
	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/log"
	"github.com/swr06/Lensing/types"
)

type wavefrontSceneReader struct {
	logger log.Logger

	// Options for compiling the parsed scene.
	opts bvh.BuildOptions

	// The parsed scene.
	rawScene *input.Scene

	// Meshes generated by "instance" statements. If any are defined they
	// replace the parsed meshes in the compiled scene.
	instances []*input.Mesh

	// List of vertices, normals and uv coords.
	vertexList []types.Vec3
	normalList []types.Vec3
	uvList     []types.Vec2

	// Statements that were skipped, keyed by keyword.
	skipped map[string]int

	// The chain of "call" statements that lead to the file being parsed.
	refStack []string

	// Resolved paths of the files that are currently being parsed.
	parsing []string
}

// The maximum nesting level for "call" statements.
const maxIncludeDepth = 32

// Create a new text scene reader.
func newWavefrontReader(opts bvh.BuildOptions) *wavefrontSceneReader {
	return &wavefrontSceneReader{
		logger:     log.New("wavefront scene reader"),
		opts:       opts,
		rawScene:   input.NewScene(),
		vertexList: make([]types.Vec3, 0),
		normalList: make([]types.Vec3, 0),
		uvList:     make([]types.Vec2, 0),
		skipped:    make(map[string]int),
	}
}

// Read scene definition.
func (r *wavefrontSceneReader) Read(sceneRes *asset.Resource) (*scene.Scene, error) {
	rawScene, err := r.ReadRaw(sceneRes)
	if err != nil {
		return nil, err
	}

	// Compile scene into a flat, BVH-indexed format
	return compiler.Compile(rawScene, r.opts)
}

// Parse a scene definition without compiling it.
func (r *wavefrontSceneReader) ReadRaw(sceneRes *asset.Resource) (*input.Scene, error) {
	r.logger.Noticef(`parsing scene from "%s"`, sceneRes.Path())
	start := time.Now()

	err := r.parse(sceneRes)
	if err != nil {
		return nil, err
	}

	if len(r.instances) != 0 {
		r.logger.Infof("replacing %d meshes with %d mesh instances", len(r.rawScene.Meshes), len(r.instances))
		r.rawScene.Meshes = r.instances
	}

	for keyword, count := range r.skipped {
		r.logger.Infof(`skipped %d unsupported "%s" statements`, count, keyword)
	}

	r.logger.Noticef("parsed scene in %d ms (%d meshes, %d primitives)", time.Since(start).Nanoseconds()/1e6, len(r.rawScene.Meshes), r.rawScene.PrimitiveCount())
	return r.rawScene, nil
}

// A ParseError reports the location of a malformed statement. When the
// statement lives in an included file, Refs lists the chain of "call"
// statements that led to it, innermost first.
type ParseError struct {
	File string
	Line int
	Refs []string
	Err  error
}

func (e *ParseError) Error() string {
	var buf strings.Builder
	if e.File != "" {
		fmt.Fprintf(&buf, "[%s: %d] ", e.File, e.Line)
	}
	fmt.Fprintf(&buf, "error: %s", e.Err)
	for _, ref := range e.Refs {
		buf.WriteString("\n")
		buf.WriteString(ref)
	}
	return buf.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Wrap err with the current location and include chain.
func (r *wavefrontSceneReader) emitError(file string, line int, err error) error {
	return &ParseError{
		File: file,
		Line: line,
		Refs: append([]string(nil), r.refStack...),
		Err:  err,
	}
}

// The offsets of the first vertex, uv and normal defined by the file that
// is currently being parsed. Positive face indices are relative to them.
type coordOffsets struct {
	vertex, uv, normal int
}

// Parse wavefront object scene format.
func (r *wavefrontSceneReader) parse(res *asset.Resource) error {
	r.parsing = append(r.parsing, resolvedPath(res))
	defer func() {
		r.parsing = r.parsing[:len(r.parsing)-1]
	}()

	// The main obj file may include (call) several other object files, each
	// one using its own 1-based indices.
	offsets := coordOffsets{
		vertex: len(r.vertexList),
		uv:     len(r.uvList),
		normal: len(r.normalList),
	}

	lineNum := 0
	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		if err := r.parseStatement(res, lineNum, lineTokens, offsets); err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				return err
			}
			return r.emitError(res.Path(), lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, err)
	}

	r.verifyLastParsedMesh()
	return nil
}

// Apply a single statement to the parsed scene.
func (r *wavefrontSceneReader) parseStatement(res *asset.Resource, lineNum int, lineTokens []string, offsets coordOffsets) error {
	keyword := lineTokens[0]
	switch keyword {
	case "call":
		if len(lineTokens) != 2 {
			return fmt.Errorf(`unsupported syntax for "%s"; expected 1 argument; got %d`, keyword, len(lineTokens)-1)
		}
		return r.include(res, lineNum, lineTokens[1])
	case "v", "vn":
		v, err := parseVec3(lineTokens)
		if err != nil {
			return err
		}
		if keyword == "v" {
			r.vertexList = append(r.vertexList, v)
		} else {
			r.normalList = append(r.normalList, v)
		}
	case "vt":
		v, err := parseVec2(lineTokens)
		if err != nil {
			return err
		}
		r.uvList = append(r.uvList, v)
	case "g", "o":
		if len(lineTokens) < 2 {
			return fmt.Errorf(`unsupported syntax for "%s"; expected 1 argument for object name; got %d`, keyword, len(lineTokens)-1)
		}
		r.verifyLastParsedMesh()
		r.rawScene.Meshes = append(r.rawScene.Meshes, input.NewMesh(lineTokens[1]))
	case "f":
		primList, err := r.parseFace(lineTokens, offsets)
		if err != nil {
			return err
		}

		// If no object has been defined create a default one
		if len(r.rawScene.Meshes) == 0 {
			r.rawScene.Meshes = append(r.rawScene.Meshes, input.NewMesh("default"))
		}
		mesh := r.rawScene.Meshes[len(r.rawScene.Meshes)-1]
		mesh.MarkBBoxDirty()
		mesh.Primitives = append(mesh.Primitives, primList...)
	case "camera_fov":
		fov, err := parseFloat32(lineTokens)
		if err != nil {
			return err
		}
		r.rawScene.Camera.FOV = fov
	case "camera_eye", "camera_look", "camera_up":
		v, err := parseVec3(lineTokens)
		if err != nil {
			return err
		}
		switch keyword {
		case "camera_eye":
			r.rawScene.Camera.Eye = v
		case "camera_look":
			r.rawScene.Camera.Look = v
		default:
			r.rawScene.Camera.Up = v
		}
	case "instance":
		// Instances may reference the mesh that is still being parsed
		r.verifyLastParsedMesh()
		instance, err := r.parseMeshInstance(lineTokens)
		if err != nil {
			return err
		}
		r.instances = append(r.instances, instance)
	default:
		// Materials, smoothing groups and free-form geometry are not
		// used by the ray query core
		if r.skipped[keyword] == 0 {
			r.logger.Debugf(`[%s: %d] skipping unsupported statement "%s"`, res.Path(), lineNum, keyword)
		}
		r.skipped[keyword]++
	}
	return nil
}

// Parse a file referenced by a "call" statement. Relative paths are resolved
// against the including resource.
func (r *wavefrontSceneReader) include(parent *asset.Resource, lineNum int, target string) error {
	if len(r.parsing) > maxIncludeDepth {
		return fmt.Errorf("include depth exceeds %d levels: %s", maxIncludeDepth, target)
	}

	r.refStack = append([]string{fmt.Sprintf("referenced from %s:%d [call]", parent.Path(), lineNum)}, r.refStack...)
	defer func() {
		r.refStack = r.refStack[1:]
	}()

	incRes, err := asset.NewResource(target, parent)
	if err != nil {
		return err
	}
	defer incRes.Close()

	incPath := resolvedPath(incRes)
	for _, open := range r.parsing {
		if open == incPath {
			return fmt.Errorf("include cycle detected: %s", target)
		}
	}

	return r.parse(incRes)
}

// Get a path that identifies res regardless of how it was referenced.
func resolvedPath(res *asset.Resource) string {
	if res.IsRemote() {
		return res.Path()
	}
	absPath, err := filepath.Abs(res.Path())
	if err != nil {
		return res.Path()
	}
	return absPath
}

// Drop the last parsed mesh if it contains no primitives.
func (r *wavefrontSceneReader) verifyLastParsedMesh() {
	lastMeshIndex := len(r.rawScene.Meshes) - 1
	if lastMeshIndex >= 0 && len(r.rawScene.Meshes[lastMeshIndex].Primitives) == 0 {
		r.logger.Warningf(`dropping mesh "%s" as it contains no polygons`, r.rawScene.Meshes[lastMeshIndex].Name)
		r.rawScene.Meshes = r.rawScene.Meshes[:lastMeshIndex]
	}
}

// Parse mesh instance definition. Definitions use the following format:
// instance mesh_name tX tY tZ yaw pitch roll sX sY sZ
// where:
// - tX, tY, tZ       : translation vector
// - yaw, pitch, roll : rotation angles in degrees
// - sX, sY, sZ	      : scale
//
// The instance geometry is baked into a new mesh.
func (r *wavefrontSceneReader) parseMeshInstance(lineTokens []string) (*input.Mesh, error) {
	if len(lineTokens) != 11 {
		return nil, fmt.Errorf(`unsupported syntax for "instance"; expected 10 arguments: mesh_name tX tY tZ yaw pitch roll sX sY sZ; got %d`, len(lineTokens)-1)
	}

	// Find object by name
	meshName := lineTokens[1]
	mesh := r.rawScene.Mesh(meshName)
	if mesh == nil {
		return nil, fmt.Errorf(`unknown mesh with name "%s"`, meshName)
	}

	var args [9]float32
	if err := parseFloats(lineTokens[1:], args[:]); err != nil {
		return nil, err
	}

	translation := types.XYZ(args[0], args[1], args[2])
	scale := types.XYZ(args[6], args[7], args[8])
	if scale[0] == 0 || scale[1] == 0 || scale[2] == 0 {
		return nil, fmt.Errorf(`instance of "%s" has a zero scale component`, meshName)
	}

	// Convert angles to radians and combine rotations: R = roll * pitch * yaw
	toRad := float32(math.Pi / 180.0)
	yawQuat := types.QuatFromAxisAngle(types.Vec3{1, 0, 0}, args[3]*toRad)
	pitchQuat := types.QuatFromAxisAngle(types.Vec3{0, 1, 0}, args[4]*toRad)
	rollQuat := types.QuatFromAxisAngle(types.Vec3{0, 0, 1}, args[5]*toRad)
	rotation := rollQuat.Mul(pitchQuat.Mul(yawQuat)).Normalize()

	name := fmt.Sprintf("%s#%d", meshName, len(r.instances))
	return mesh.Instance(name, translation, rotation, scale), nil
}

// A face corner. Missing uv or normal references are left zeroed.
type faceVertex struct {
	position  types.Vec3
	normal    types.Vec3
	uv        types.Vec2
	hasNormal bool
}

// Parse face definition. Each face definition consists of 3 or more
// arguments, one for each vertex. Each one of the vertex arguments is
// comprised of 1, 2 or 3 args separated by a slash character. The following
// formats are supported:
// - vertexIndex
// - vertexIndex/uvIndex
// - vertexIndex//normalIndex
// - vertexIndex/uvIndex/normalIndex
//
// Indices start from 1 and may be negative to indicate
// an offset off the end of the vertex/uv list.
//
// Polygons are split into a triangle fan around their first vertex.
func (r *wavefrontSceneReader) parseFace(lineTokens []string, offsets coordOffsets) ([]*input.Primitive, error) {
	if len(lineTokens) < 4 {
		return nil, fmt.Errorf(`unsupported syntax for "f"; expected at least 3 arguments; got %d`, len(lineTokens)-1)
	}

	corners := make([]faceVertex, len(lineTokens)-1)
	hasNormals := false
	expIndices := 0
	for arg := range corners {
		refs := strings.Split(lineTokens[arg+1], "/")

		// The first arg defines the format for the following args
		if arg == 0 {
			expIndices = len(refs)
		} else if len(refs) != expIndices {
			return nil, fmt.Errorf("expected each face argument to contain %d indices; arg %d contains %d indices", expIndices, arg, len(refs))
		}

		corner, err := r.parseFaceVertex(refs, offsets)
		if err != nil {
			return nil, fmt.Errorf("%w for face argument %d", err, arg)
		}
		corners[arg] = corner
		hasNormals = hasNormals || corner.hasNormal
	}

	primitives := make([]*input.Primitive, 0, len(corners)-2)
	for fan := 1; fan < len(corners)-1; fan++ {
		tri := [3]*faceVertex{&corners[0], &corners[fan], &corners[fan+1]}
		verts := [3]types.Vec3{tri[0].position, tri[1].position, tri[2].position}
		normals := [3]types.Vec3{tri[0].normal, tri[1].normal, tri[2].normal}
		uvs := [3]types.Vec2{tri[0].uv, tri[1].uv, tri[2].uv}

		// If no normals are available generate them from the vertices
		if !hasNormals {
			faceNormal := verts[1].Sub(verts[0]).Cross(verts[2].Sub(verts[0])).Normalize()
			normals = [3]types.Vec3{faceNormal, faceNormal, faceNormal}
		}

		primitives = append(primitives, input.NewPrimitive(verts, normals, uvs))
	}

	return primitives, nil
}

// Resolve the vertex, uv and normal references of a face argument.
func (r *wavefrontSceneReader) parseFaceVertex(refs []string, offsets coordOffsets) (faceVertex, error) {
	var corner faceVertex

	// Faces must at least define a vertex coord
	if refs[0] == "" {
		return corner, errors.New("missing vertex index")
	}
	index, err := selectFaceCoordIndex(refs[0], len(r.vertexList), offsets.vertex)
	if err != nil {
		return corner, fmt.Errorf("could not parse vertex coord: %w", err)
	}
	corner.position = r.vertexList[index]

	if len(refs) > 1 && refs[1] != "" {
		if index, err = selectFaceCoordIndex(refs[1], len(r.uvList), offsets.uv); err != nil {
			return corner, fmt.Errorf("could not parse tex coord: %w", err)
		}
		corner.uv = r.uvList[index]
	}

	if len(refs) > 2 && refs[2] != "" {
		if index, err = selectFaceCoordIndex(refs[2], len(r.normalList), offsets.normal); err != nil {
			return corner, fmt.Errorf("could not parse normal coord: %w", err)
		}
		corner.normal = r.normalList[index]
		corner.hasNormal = true
	}

	return corner, nil
}

var errIndexOutOfBounds = errors.New("index out of bounds")

// Given an index for a face coord type (vertex, normal, tex) calculate the
// proper offset into the coord list. Wavefront format can also use negative
// indices to reference elements from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	offset := relOffset + int(index) - 1
	if index < 0 {
		offset = coordListLen + int(index)
	}
	if index == 0 || offset < 0 || offset >= coordListLen {
		return -1, errIndexOutOfBounds
	}
	return offset, nil
}

// Parse the arguments of a statement into out. Extra arguments are ignored.
func parseFloats(lineTokens []string, out []float32) error {
	if len(lineTokens)-1 < len(out) {
		plural := "s"
		if len(out) == 1 {
			plural = ""
		}
		return fmt.Errorf(`unsupported syntax for "%s"; expected %d argument%s; got %d`, lineTokens[0], len(out), plural, len(lineTokens)-1)
	}

	for index := range out {
		v, err := strconv.ParseFloat(lineTokens[index+1], 32)
		if err != nil {
			return err
		}
		out[index] = float32(v)
	}
	return nil
}

func parseFloat32(lineTokens []string) (float32, error) {
	var v [1]float32
	err := parseFloats(lineTokens, v[:])
	return v[0], err
}

func parseVec3(lineTokens []string) (types.Vec3, error) {
	var v types.Vec3
	err := parseFloats(lineTokens, v[:])
	return v, err
}

func parseVec2(lineTokens []string) (types.Vec2, error) {
	var v types.Vec2
	err := parseFloats(lineTokens, v[:])
	return v, err
}
