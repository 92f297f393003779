// Package source resolves import locations (playlist files or directories) into object ids.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/plsd/internal/protocol"
)

// ObjectPrefix marks object ids that refer to a URI.
const ObjectPrefix = "urisource::"

// Result is a resolved import: a suggested playlist name and the object ids in order.
type Result struct {
	Name      string
	ObjectIDs []string
}

// Resolver turns a source URI into a [Result]. baseURI, when set, anchors relative sources.
type Resolver interface {
	Resolve(ctx context.Context, uri, baseURI string) (*Result, error)
}

// FileResolver reads local playlist files (.m3u, .m3u8, .pls, .wpl) and media directories.
type FileResolver struct{}

// NewFileResolver returns a [FileResolver].
func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

// Resolve implements [Resolver].
func (r *FileResolver) Resolve(ctx context.Context, uri, baseURI string) (*Result, error) {
	path, err := LocalPath(uri, baseURI)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, protocol.Errorf(protocol.CodeImportFailed, "cannot open %s: %v", path, errors.Unwrap(err))
	}

	var res *Result
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case info.IsDir():
		res, err = r.walk(ctx, path)
	case ext == ".m3u" || ext == ".m3u8":
		res, err = readFile(path, parseM3U)
	case ext == ".pls":
		res, err = readFile(path, parsePLS)
	case ext == ".wpl":
		res, err = readFile(path, parseWPL)
	default:
		return nil, protocol.Errorf(protocol.CodeImportFailed, "unsupported source %s", path)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if res.Name == "" {
		res.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return res, nil
}

func (r *FileResolver) walk(ctx context.Context, root string) (*Result, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && IsMediaFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, protocol.Errorf(protocol.CodeImportFailed, "cannot read %s: %v", root, err)
	}

	slices.Sort(paths)
	res := &Result{Name: filepath.Base(root)}
	for _, p := range paths {
		res.ObjectIDs = append(res.ObjectIDs, FileObjectID(p))
	}
	return res, nil
}

// parser turns playlist file contents into entries. dir is the directory of the playlist file.
type parser func(data []byte, dir string) (*Result, error)

func readFile(path string, parse parser) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, protocol.Errorf(protocol.CodeImportFailed, "cannot read %s: %v", path, err)
	}
	res, err := parse(data, filepath.Dir(path))
	if err != nil {
		return nil, protocol.Errorf(protocol.CodeParseFailed, "%s: %v", filepath.Base(path), err)
	}
	return res, nil
}

// LocalPath converts a file URI or plain path into an absolute local path, resolving relative sources
// against baseURI.
func LocalPath(uri, baseURI string) (string, error) {
	p, err := uriPath(uri)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}

	base := "."
	if baseURI != "" {
		if base, err = uriPath(baseURI); err != nil {
			return "", err
		}
	}
	return filepath.Abs(filepath.Join(base, p))
}

func uriPath(uri string) (string, error) {
	if uri == "" {
		return "", protocol.Errorf(protocol.CodeImportFailed, "empty source")
	}
	if !strings.Contains(uri, "://") {
		return uri, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", protocol.Errorf(protocol.CodeImportFailed, "invalid source %q: %v", uri, err)
	}
	if u.Scheme != "file" {
		return "", protocol.Errorf(protocol.CodeImportFailed, "unsupported scheme %q", u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", protocol.Errorf(protocol.CodeImportFailed, "remote file host %q", u.Host)
	}
	return u.Path, nil
}

// FileObjectID returns the object id of a local file.
func FileObjectID(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return ObjectPrefix + u.String()
}

// entryObjectID maps one playlist entry to an object id. URLs are kept; paths are made absolute against dir.
func entryObjectID(entry, dir string) (string, bool) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", false
	}
	if strings.ContainsAny(entry, "\r\n") {
		return "", false
	}

	if i := strings.Index(entry, "://"); i > 0 {
		if u, err := url.Parse(entry); err == nil && u.Scheme != "file" {
			return ObjectPrefix + entry, true
		}
		p, err := uriPath(entry)
		if err != nil {
			return "", false
		}
		return FileObjectID(filepath.Clean(p)), true
	}

	entry = strings.ReplaceAll(entry, `\`, "/")
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(dir, entry)
	}
	return FileObjectID(filepath.Clean(entry)), true
}

func (r *Result) add(entry, dir string) {
	if oid, ok := entryObjectID(entry, dir); ok {
		r.ObjectIDs = append(r.ObjectIDs, oid)
	}
}

func (r *Result) String() string {
	return fmt.Sprintf("%s (%d items)", r.Name, len(r.ObjectIDs))
}
