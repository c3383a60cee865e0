package reader

import (
	"fmt"

	"github.com/swr06/Lensing/asset"
	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/bvh"
)

// The Reader interface is implemented by all scene readers.
type Reader interface {
	// Read scene definition from a resource.
	Read(*asset.Resource) (*scene.Scene, error)
}

// Read scene from file. Wavefront scenes are compiled using the supplied
// BVH build options; compiled scenes are loaded as-is.
func ReadScene(filename string, opts bvh.BuildOptions) (*scene.Scene, error) {
	res, err := asset.NewResource(filename, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	reader, err := readerFor(res, opts)
	if err != nil {
		return nil, err
	}
	return reader.Read(res)
}

// Select reader based on the resource file extension.
func readerFor(res *asset.Resource, opts bvh.BuildOptions) (Reader, error) {
	switch res.Ext() {
	case ".obj":
		return newWavefrontReader(opts), nil
	case ".zip":
		return newZipSceneReader(), nil
	}
	return nil, fmt.Errorf("readScene: unsupported file format %q", res.Ext())
}
