package reader

import (
	"archive/zip"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/swr06/Lensing/asset"
	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/asset/scene/writer"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/log"
)

type zipSceneReader struct {
	logger log.Logger
}

// Create a new zip scene reader
func newZipSceneReader() *zipSceneReader {
	return &zipSceneReader{
		logger: log.New("zip reader"),
	}
}

// Read scene definition from zip file.
func (p *zipSceneReader) Read(sceneRes *asset.Resource) (*scene.Scene, error) {
	p.logger.Noticef(`parsing compiled scene from "%s"`, sceneRes.Path())
	start := time.Now()

	// zip package requires a reader implementing ReaderAt. To work around
	// this requirement we read the entire zip file into memory and create
	// a reader from the bytes package that implements ReaderAt
	data, err := io.ReadAll(sceneRes)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip reader: %w", err)
	}

	var sc *scene.Scene
	for _, f := range zr.File {
		if f.Name != writer.DataFile {
			p.logger.Warningf("unknown file %s in scene zip file; skipping", f.Name)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		sc = &scene.Scene{}
		err = gob.NewDecoder(rc).Decode(sc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("zip reader: failed to load %s: %w", f.Name, err)
		}
	}

	if sc == nil {
		return nil, fmt.Errorf("zip reader: %s does not contain a compiled scene", sceneRes.Path())
	}

	// Compiled scenes store triangles in leaf order; reject archives whose
	// tree does not match their geometry
	if err = sc.Bvh.Validate(bvh.Primitives(sc.Triangles)); err != nil {
		return nil, fmt.Errorf("zip reader: %s: %w", sceneRes.Path(), err)
	}

	// Rebuild derived camera state
	if sc.Camera != nil {
		sc.Camera.Update()
	}

	p.logger.Noticef("loaded scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return sc, nil
}
