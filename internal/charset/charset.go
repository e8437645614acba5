// Package charset copies file trees between character encodings.
//
// Names are resolved as WHATWG labels first ("utf8", "gbk", "big5") and then
// as IANA names, both through golang.org/x/text. Files with a known text
// extension are re-encoded; everything else is copied byte for byte.
//
// Conversion is lossy: undecodable input becomes U+FFFD and runes the target
// charset cannot hold become its substitution byte. Neither is an error.
package charset

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	builderrors "git.home.luguber.info/inful/pagebuilder/internal/build/errors"
	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
)

// Working is the charset of the staging directories.
const Working = "utf8"

var textExtensions = map[string]struct{}{
	".js": {}, ".css": {}, ".less": {}, ".html": {}, ".htm": {}, ".json": {},
	".txt": {}, ".xml": {}, ".svg": {}, ".tpl": {}, ".md": {}, ".sh": {}, ".bat": {},
}

// Endpoint names one side of a transcoding copy.
type Endpoint struct {
	Path    string
	Charset string
}

// Lookup resolves a charset name and returns the encoding with its canonical name.
func Lookup(name string) (encoding.Encoding, string, error) {
	cleaned := strings.TrimSpace(name)
	if enc, err := htmlindex.Get(cleaned); err == nil {
		canonical, _ := htmlindex.Name(enc)
		return enc, canonical, nil
	}
	enc, err := ianaindex.IANA.Encoding(cleaned)
	if err != nil || enc == nil {
		return nil, "", ferrors.CharsetError(fmt.Sprintf("unknown charset %q", name)).
			WithContext("charset", name).
			Build()
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = strings.ToLower(cleaned)
	}
	return enc, canonical, nil
}

// Valid reports whether name resolves to a supported charset.
func Valid(name string) bool {
	_, _, err := Lookup(name)
	return err == nil
}

// IsText reports whether path is re-encoded rather than copied verbatim.
func IsText(path string) bool {
	_, ok := textExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Tree copies src (a file or a directory) to dst, converting text files from
// src.Charset to dst.Charset. Existing destination files are overwritten.
func Tree(ctx context.Context, src, dst Endpoint) error {
	conv, err := newConverter(src.Charset, dst.Charset)
	if err != nil {
		return err
	}
	info, err := os.Stat(src.Path)
	if err != nil {
		return fsError("stat source", src.Path, err)
	}
	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst.Path), 0o755); err != nil {
			return fsError("create directory", filepath.Dir(dst.Path), err)
		}
		return conv.file(src.Path, dst.Path, info.Mode().Perm())
	}
	return conv.walk(ctx, src.Path, dst.Path)
}

// Dir converts every file below the directory src into dst, merging with
// whatever dst already contains.
func Dir(ctx context.Context, src, srcCharset, dst, dstCharset string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fsError("stat source", src, err)
	}
	if !info.IsDir() {
		return fsError("source is not a directory", src, fs.ErrInvalid)
	}
	return Tree(ctx, Endpoint{Path: src, Charset: srcCharset}, Endpoint{Path: dst, Charset: dstCharset})
}

type converter struct {
	from, to encoding.Encoding
	identity bool
}

func newConverter(from, to string) (*converter, error) {
	fromEnc, fromName, err := Lookup(from)
	if err != nil {
		return nil, err
	}
	toEnc, toName, err := Lookup(to)
	if err != nil {
		return nil, err
	}
	return &converter{from: fromEnc, to: toEnc, identity: fromName == toName}, nil
}

func (c *converter) walk(ctx context.Context, srcRoot, dstRoot string) error {
	return filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fsError("walk source", path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return fsError("relative path", path, err)
		}
		target := filepath.Join(dstRoot, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fsError("create directory", target, err)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fsError("stat file", path, err)
		}
		return c.file(path, target, info.Mode().Perm())
	})
}

func (c *converter) file(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fsError("open file", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fsError("create file", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fsError("close file", dst, cerr)
		}
	}()

	var r io.Reader = in
	var w io.Writer = out
	var encoder io.WriteCloser
	if !c.identity && IsText(src) {
		// Unsupported runes are substituted, not reported.
		r = transform.NewReader(in, c.from.NewDecoder())
		encoder = transform.NewWriter(out, encoding.ReplaceUnsupported(c.to.NewEncoder()))
		w = encoder
	}
	if _, err := io.Copy(w, r); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCharset, "transcode file").
			WithContext("path", src).
			Build()
	}
	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryCharset, "flush encoder").
				WithContext("path", dst).
				Build()
		}
	}
	return nil
}

func fsError(message, path string, err error) error {
	return builderrors.IO(message, path, err)
}
