package imaging

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ib-77/ropchain/pkg/stage"
)

// Resolver maps image locators to local paths.
//
// Supported schemes:
//   - file:///abs/path
//   - res://name, resolved under Resources; ".png" is appended when name
//     has no extension.
type Resolver struct {
	Resources string
}

func (r Resolver) Path(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", stage.InvalidInput("invalid image locator %q: %v", locator, err)
	}
	switch u.Scheme {
	case "file":
		if u.Path == "" || !filepath.IsAbs(filepath.FromSlash(u.Path)) {
			return "", stage.InvalidInput("file locator %q must carry an absolute path", locator)
		}
		return filepath.Clean(filepath.FromSlash(u.Path)), nil
	case "res":
		name := strings.TrimPrefix(u.Host+u.Path, "/")
		if name == "" {
			return "", stage.InvalidInput("resource locator %q has no name", locator)
		}
		if r.Resources == "" {
			return "", errors.Newf("no resource directory configured for %q", locator)
		}
		clean := filepath.Clean(filepath.FromSlash(name))
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return "", stage.InvalidInput("resource locator %q escapes the resource directory", locator)
		}
		if filepath.Ext(clean) == "" {
			clean += ".png"
		}
		return filepath.Join(r.Resources, clean), nil
	default:
		return "", stage.InvalidInput("unsupported image locator scheme %q", u.Scheme)
	}
}

// FileURI is the file:// locator of an absolute or relative path.
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
