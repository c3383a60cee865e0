package asset

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// A Resource wraps a streamable local file or a remote http(s) document.
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Returns the path to this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// Returns the file name of this resource without any directory components.
func (r *Resource) Name() string {
	if r.IsRemote() {
		return path.Base(r.url.Path)
	}
	return filepath.Base(r.url.Path)
}

// Returns the lowercased file extension of this resource.
func (r *Resource) Ext() string {
	return strings.ToLower(filepath.Ext(r.Name()))
}

// Returns true if the Resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// Create a new Resource data stream. If relTo is specified and
// pathToResource does not define a scheme, then the path to the new Resource
// is generated by joining the directory of relTo and pathToResource.
//
// Local paths starting with ~ are expanded to the user's home folder. The
// caller must close the returned Resource.
func NewResource(pathToResource string, relTo *Resource) (*Resource, error) {
	// Windows paths use backslashes; normalize them before URL parsing
	resURL, err := url.Parse(strings.ReplaceAll(pathToResource, `\`, `/`))
	if err != nil {
		return nil, fmt.Errorf("resource: could not parse '%s': %w", pathToResource, err)
	}

	if resURL.Scheme == "" {
		if resURL.Path, err = homedir.Expand(resURL.Path); err != nil {
			return nil, fmt.Errorf("resource: could not expand '%s': %w", pathToResource, err)
		}
	}

	// Resolve relative paths against the parent resource
	if resURL.Scheme == "" && relTo != nil && !filepath.IsAbs(resURL.Path) {
		resURL, err = resolveRelative(resURL.Path, relTo)
		if err != nil {
			return nil, err
		}
	}

	var reader io.ReadCloser
	switch resURL.Scheme {
	case "":
		reader, err = os.Open(filepath.Clean(resURL.Path))
		if err != nil {
			return nil, fmt.Errorf("resource: %w", err)
		}
	case "http", "https":
		resp, err := http.Get(resURL.String())
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %w", resURL.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", resURL.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", resURL.Scheme)
	}

	return &Resource{
		ReadCloser: reader,
		url:        resURL,
	}, nil
}

func resolveRelative(relPath string, relTo *Resource) (*url.URL, error) {
	if relTo.IsRemote() {
		parent := *relTo.url
		parent.Path = path.Join(path.Dir(parent.Path), relPath)
		return &parent, nil
	}

	parentPath, err := filepath.Abs(relTo.url.Path)
	if err != nil {
		return nil, fmt.Errorf("resource: could not detect abs path for %s: %w", relTo.url.String(), err)
	}
	return &url.URL{Path: filepath.Join(filepath.Dir(parentPath), relPath)}, nil
}

// Create a resource from a reader. The name is used for resolving relative
// resources and for detecting the resource format.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	resURL, err := url.Parse(name)
	if err != nil {
		resURL = &url.URL{Path: name}
	}
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        resURL,
	}
}
