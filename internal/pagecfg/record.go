// Package pagecfg models the per-version page configuration (fb.page.json)
// and the immutable snapshot a page builds from after activation.
package pagecfg

import "maps"

// Well-known record keys.
const (
	KeyInputCharset  = "inputCharset"
	KeyOutputCharset = "outputCharset"
	KeyFileFormat    = "fileFormat"
	KeyConcat        = "concat"

	KeyModuleCompiler = "moduleCompiler"
	KeyCSSCombo       = "cssCombo"
	KeyLess           = "less"
	KeyUglify         = "uglify"
	KeyCSSMin         = "cssmin"
)

// FileName is the version record file inside a version directory.
const FileName = "fb.page.json"

// Record is the decoded content of fb.page.json. Values are whatever the
// JSON decoder produced (numbers as json.Number).
type Record map[string]any

// Defaults returns the record written for a brand new version.
func Defaults(charset string) Record {
	return Record{
		KeyInputCharset:  charset,
		KeyOutputCharset: charset,
	}
}

// WithDefaults returns a new record holding r plus every key of defaults
// that r does not already define. Existing keys win.
func (r Record) WithDefaults(defaults Record) Record {
	out := make(Record, len(r)+len(defaults))
	maps.Copy(out, defaults)
	maps.Copy(out, r)
	return out
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
