package lesscss

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagebuilder/internal/pipeline"
	"git.home.luguber.info/inful/pagebuilder/internal/transforms"
)

func stage(t *testing.T, files map[string]string) *pipeline.Input {
	t.Helper()
	root := t.TempDir()
	in := &pipeline.Input{SrcDir: filepath.Join(root, "src"), DestDir: filepath.Join(root, "dst")}
	for name, content := range files {
		p := filepath.Join(in.SrcDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return in
}

func TestNoSourcesIsNoop(t *testing.T) {
	in := stage(t, map[string]string{"core/a.css": "a{}"})
	tr := New(transforms.Options{Command: []string{"pagebuilder-no-such-lessc"}})
	require.NoError(t, tr.Apply(context.Background(), in))
}

func TestMissingCompiler(t *testing.T) {
	in := stage(t, map[string]string{"core/a.less": "@c: red; a { color: @c; }"})
	tr := New(transforms.Options{Command: []string{"pagebuilder-no-such-lessc", "{in}", "{out}"}})
	require.ErrorIs(t, tr.Apply(context.Background(), in), transforms.ErrToolNotFound)
}

func TestCompilesToCSS(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	in := stage(t, map[string]string{
		"core/b.less":   "b",
		"core/a.less":   "a",
		"core/skip.css": "plain",
		"mods/m.less":   "other base",
	})
	tr := New(transforms.Options{Command: []string{"/bin/sh", "-c", `printf 'compiled:%s' "$(cat "$0")"`, "{in}"}})
	require.NoError(t, tr.Apply(context.Background(), in))

	for name, want := range map[string]string{"a.css": "compiled:a", "b.css": "compiled:b"} {
		data, err := os.ReadFile(filepath.Join(in.DestDir, "core", name))
		require.NoError(t, err)
		require.Equal(t, want, string(data))
	}
	_, err := os.Stat(filepath.Join(in.DestDir, "mods", "m.css"))
	require.True(t, os.IsNotExist(err))
}

func TestFactoryDefaults(t *testing.T) {
	tr, err := NewFactory(nil)(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultCommand, tr.(*Transform).opts.Command)

	tr, err = NewFactory([]string{"lessc", "--compress", "{in}", "{out}"})(nil)
	require.NoError(t, err)
	require.Equal(t, []string{"lessc", "--compress", "{in}", "{out}"}, tr.(*Transform).opts.Command)
}
