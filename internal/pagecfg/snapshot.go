package pagecfg

import (
	"fmt"
	"strings"

	builderrors "git.home.luguber.info/inful/pagebuilder/internal/build/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/charset"
	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/foundation/normalization"
)

// FileFormat names the line ending used between concatenated files.
type FileFormat string

const (
	FileFormatUnix FileFormat = "unix"
	FileFormatDOS  FileFormat = "dos"
	FileFormatMac  FileFormat = "mac"
)

var fileFormats = normalization.NewNormalizer("fileFormat", map[string]FileFormat{
	"unix": FileFormatUnix,
	"dos":  FileFormatDOS,
	"mac":  FileFormatMac,
}, FileFormatUnix)

// LineEnd returns the separator bytes for the format.
func (f FileFormat) LineEnd() string {
	switch f {
	case FileFormatDOS:
		return "\r\n"
	case FileFormatMac:
		return "\r"
	default:
		return "\n"
	}
}

// ParseFileFormat validates a fileFormat value. Empty means unix.
func ParseFileFormat(raw string) (FileFormat, error) {
	f, err := fileFormats.Parse(raw)
	if err != nil {
		return "", builderrors.New(builderrors.ErrInvalidFileFormat, "unrecognized fileFormat", err)
	}
	return f, nil
}

// Snapshot is the activated, read-only view of a version record.
type Snapshot struct {
	record        Record
	inputCharset  string
	outputCharset string
	fileFormat    FileFormat
}

// NewSnapshot validates rec and freezes a copy of it. defaultCharset fills
// inputCharset/outputCharset when the record leaves them empty.
func NewSnapshot(rec Record, defaultCharset string) (*Snapshot, error) {
	s := &Snapshot{record: rec.Clone()}

	var err error
	if s.inputCharset, err = resolveCharset(rec, KeyInputCharset, defaultCharset); err != nil {
		return nil, err
	}
	if s.outputCharset, err = resolveCharset(rec, KeyOutputCharset, defaultCharset); err != nil {
		return nil, err
	}

	raw := ""
	if v, ok := rec[KeyFileFormat]; ok && v != nil {
		str, isString := v.(string)
		if !isString {
			return nil, builderrors.New(builderrors.ErrInvalidFileFormat,
				fmt.Sprintf("fileFormat must be a string, got %T", v), nil)
		}
		raw = str
	}
	if s.fileFormat, err = ParseFileFormat(raw); err != nil {
		return nil, err
	}
	return s, nil
}

func resolveCharset(rec Record, key, fallback string) (string, error) {
	name := fallback
	if v, ok := rec[key].(string); ok && strings.TrimSpace(v) != "" {
		name = strings.TrimSpace(v)
	}
	if !charset.Valid(name) {
		return "", ferrors.ConfigError(fmt.Sprintf("%s names an unknown charset %q", key, name)).
			WithContext("key", key).
			Build()
	}
	return name, nil
}

// InputCharset is the charset of the version sources.
func (s *Snapshot) InputCharset() string { return s.inputCharset }

// OutputCharset is the charset of the published files.
func (s *Snapshot) OutputCharset() string { return s.outputCharset }

// FileFormat is the validated line ending format.
func (s *Snapshot) FileFormat() FileFormat { return s.fileFormat }

// LineEnd is the separator concatenated after every file.
func (s *Snapshot) LineEnd() string { return s.fileFormat.LineEnd() }

// Get returns a deep copy of the value stored under key.
func (s *Snapshot) Get(key string) (any, bool) {
	v, ok := s.record[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Section returns a copy of the object stored under key, or an empty map
// when the key is absent or not an object.
func (s *Snapshot) Section(key string) map[string]any {
	if m, ok := s.record[key].(map[string]any); ok {
		return cloneValue(m).(map[string]any)
	}
	return map[string]any{}
}

// Record returns a deep copy of the merged record.
func (s *Snapshot) Record() Record {
	return s.record.Clone()
}
