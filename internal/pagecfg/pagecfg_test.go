package pagecfg

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	builderrors "git.home.luguber.info/inful/pagebuilder/internal/build/errors"
	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
)

func TestWithDefaultsExistingKeysWin(t *testing.T) {
	onDisk := Record{KeyInputCharset: "gbk", "custom": true}
	merged := onDisk.WithDefaults(Defaults("utf8"))

	want := Record{KeyInputCharset: "gbk", KeyOutputCharset: "utf8", "custom": true}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, onDisk, 2, "receiver must not be mutated")
}

func TestNewSnapshotCharsets(t *testing.T) {
	s, err := NewSnapshot(Record{KeyInputCharset: "gbk", KeyOutputCharset: ""}, "utf8")
	require.NoError(t, err)
	require.Equal(t, "gbk", s.InputCharset())
	require.Equal(t, "utf8", s.OutputCharset())

	_, err = NewSnapshot(Record{KeyInputCharset: "martian"}, "utf8")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestNewSnapshotFileFormat(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		lineEnd string
		wantErr bool
	}{
		{"absent", nil, "\n", false},
		{"unix", "unix", "\n", false},
		{"dos", "DOS", "\r\n", false},
		{"mac", "mac", "\r", false},
		{"unknown", "amiga", "", true},
		{"not a string", json.Number("1"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Defaults("utf8")
			if tt.value != nil {
				rec[KeyFileFormat] = tt.value
			}
			s, err := NewSnapshot(rec, "utf8")
			if tt.wantErr {
				require.ErrorIs(t, err, builderrors.ErrInvalidFileFormat)
				require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.lineEnd, s.LineEnd())
		})
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	rec := Record{
		KeyConcat: map[string]any{"core/all.js": []any{"core/a.js"}},
		KeyUglify: map[string]any{"mangle": true},
	}
	s, err := NewSnapshot(rec, "utf8")
	require.NoError(t, err)

	// Mutating the source record after activation has no effect.
	rec[KeyConcat].(map[string]any)["core/all.js"] = []any{}

	v, ok := s.Get(KeyConcat)
	require.True(t, ok)
	require.Equal(t, []any{"core/a.js"}, v.(map[string]any)["core/all.js"])

	// Mutating returned values has no effect either.
	v.(map[string]any)["core/all.js"] = nil
	section := s.Section(KeyUglify)
	section["mangle"] = false
	require.Equal(t, true, s.Section(KeyUglify)["mangle"])

	again, _ := s.Get(KeyConcat)
	require.Equal(t, []any{"core/a.js"}, again.(map[string]any)["core/all.js"])

	require.Empty(t, s.Section("missing"))
}
