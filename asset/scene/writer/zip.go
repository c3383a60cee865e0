package writer

import (
	"archive/zip"
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/log"
)

// The name of the zip entry holding the gob encoded scene. Must match the
// entry name expected by the zip scene reader.
const DataFile = "scene.bin"

type zipSceneWriter struct {
	logger    log.Logger
	sceneFile string
}

// Create a new zip scene writer
func newZipSceneWriter(sceneFile string) *zipSceneWriter {
	return &zipSceneWriter{
		logger:    log.New("zip writer"),
		sceneFile: sceneFile,
	}
}

// Write scene definition to zip file.
func (w *zipSceneWriter) Write(sc *scene.Scene) (err error) {
	if sc == nil {
		return fmt.Errorf("zip writer: scene not defined")
	}

	w.logger.Noticef(`writing compiled scene to "%s"`, w.sceneFile)
	start := time.Now()

	zipFile, err := os.Create(w.sceneFile)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := zipFile.Close(); err == nil {
			err = closeErr
		}
	}()

	zw := zip.NewWriter(zipFile)
	cw, err := zw.Create(DataFile)
	if err != nil {
		return err
	}

	err = gob.NewEncoder(cw).Encode(sc)
	if err != nil {
		return fmt.Errorf("zip writer: failed to encode scene: %w", err)
	}

	// Flush the zip central directory
	err = zw.Close()
	if err != nil {
		return err
	}

	w.logger.Noticef("wrote scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return nil
}
