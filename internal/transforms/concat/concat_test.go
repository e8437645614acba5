package concat

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagebuilder/internal/pagecfg"
	"git.home.luguber.info/inful/pagebuilder/internal/pipeline"
)

func newInput(t *testing.T, rec pagecfg.Record, files map[string]string) *pipeline.Input {
	t.Helper()
	root := t.TempDir()
	in := &pipeline.Input{
		Page:    "home",
		Version: "1.0",
		SrcDir:  filepath.Join(root, "page_src_temp"),
		DestDir: filepath.Join(root, "page_build_temp"),
	}
	require.NoError(t, os.MkdirAll(in.SrcDir, 0o755))
	require.NoError(t, os.MkdirAll(in.DestDir, 0o755))
	for name, content := range files {
		path := filepath.Join(in.SrcDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	// Round-trip through JSON so values have the shapes the decoder produces.
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded pagecfg.Record
	require.NoError(t, json.Unmarshal(data, &decoded))

	snap, err := pagecfg.NewSnapshot(decoded, "utf8")
	require.NoError(t, err)
	in.Settings = snap
	return in
}

func readOutput(t *testing.T, in *pipeline.Input, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(in.DestDir, rel))
	require.NoError(t, err)
	return string(data)
}

func TestConcatSeparatorAfterEveryFile(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"unix", "A\nB\n"},
		{"dos", "A\r\nB\r\n"},
		{"mac", "A\rB\r"},
		{"", "A\nB\n"},
	}
	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			rec := pagecfg.Record{
				"concat": map[string]any{"core/all.js": []string{"a.js", "b.js"}},
			}
			if tt.format != "" {
				rec["fileFormat"] = tt.format
			}
			in := newInput(t, rec, map[string]string{"a.js": "A", "b.js": "B"})

			require.NoError(t, New().Apply(context.Background(), in))
			require.Equal(t, tt.want, readOutput(t, in, "core/all.js"))
		})
	}
}

func TestConcatPreservesOrderAndStreamsLargeFiles(t *testing.T) {
	big := strings.Repeat("x", 3*bufferSize+17)
	in := newInput(t, pagecfg.Record{
		"concat": map[string]any{"out.js": []string{"c.js", "big.js", "a.js"}},
	}, map[string]string{"a.js": "A", "big.js": big, "c.js": "C"})

	require.NoError(t, New().Apply(context.Background(), in))
	require.Equal(t, "C\n"+big+"\nA\n", readOutput(t, in, "out.js"))
}

func TestConcatSkipsEmptyJobs(t *testing.T) {
	in := newInput(t, pagecfg.Record{
		"concat": map[string]any{
			"core/empty.js":  []any{},
			"core/blank.js":  []any{"", "   ", 42, nil, true},
			"   ":            []any{"a.js"},
			"core/scalar.js": "a.js",
		},
	}, map[string]string{"a.js": "A"})

	require.NoError(t, New().Apply(context.Background(), in))

	entries, err := os.ReadDir(in.DestDir)
	require.NoError(t, err)
	require.Empty(t, entries, "skipped jobs produce no output")
}

func TestConcatFiltersNonStringEntries(t *testing.T) {
	in := newInput(t, pagecfg.Record{
		"concat": map[string]any{"all.css": []any{"a.css", 7, " ", "b.css"}},
	}, map[string]string{"a.css": "a{}", "b.css": "b{}"})

	require.NoError(t, New().Apply(context.Background(), in))
	require.Equal(t, "a{}\nb{}\n", readOutput(t, in, "all.css"))
}

func TestConcatIndependentJobs(t *testing.T) {
	files := map[string]string{}
	entries := map[string]any{}
	for i := range 8 {
		name := string(rune('a'+i)) + ".js"
		files[name] = strings.Repeat(string(rune('A'+i)), 1000)
		entries["out/"+name] = []string{name, name}
	}
	in := newInput(t, pagecfg.Record{"concat": entries}, files)

	require.NoError(t, New().Apply(context.Background(), in))
	for name, content := range files {
		require.Equal(t, content+"\n"+content+"\n", readOutput(t, in, "out/"+name))
	}
}

func TestConcatErrors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		in := newInput(t, pagecfg.Record{
			"concat": map[string]any{"all.js": []string{"a.js", "missing.js"}},
		}, map[string]string{"a.js": "A"})
		err := New().Apply(context.Background(), in)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("not an object", func(t *testing.T) {
		in := newInput(t, pagecfg.Record{"concat": []string{"a.js"}}, nil)
		require.ErrorContains(t, New().Apply(context.Background(), in), "must be an object")
	})

	t.Run("duplicate outputs", func(t *testing.T) {
		in := newInput(t, pagecfg.Record{
			"concat": map[string]any{
				"core/all.js":   []string{"a.js"},
				"core//all.js":  []string{"a.js"},
				"./core/all.js": []string{"a.js"},
			},
		}, map[string]string{"a.js": "A"})
		err := New().Apply(context.Background(), in)
		require.ErrorContains(t, err, "resolve to the same file")

		_, statErr := os.Stat(filepath.Join(in.DestDir, "core", "all.js"))
		require.True(t, os.IsNotExist(statErr), "no job starts when outputs collide")
	})

	t.Run("escaping path", func(t *testing.T) {
		in := newInput(t, pagecfg.Record{
			"concat": map[string]any{"../all.js": []string{"a.js"}},
		}, map[string]string{"a.js": "A"})
		require.ErrorContains(t, New().Apply(context.Background(), in), "escapes")
	})
}

func TestConcatNoConfig(t *testing.T) {
	in := newInput(t, pagecfg.Record{}, nil)
	require.NoError(t, New().Apply(context.Background(), in))

	jobs, err := Jobs(context.Background(), &pipeline.Input{})
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestFactory(t *testing.T) {
	tr, err := Factory(nil)
	require.NoError(t, err)
	require.Equal(t, Name, tr.Name())
}
