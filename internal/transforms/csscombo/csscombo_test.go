package csscombo

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

func output(t *testing.T, in *pipeline.Input, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(in.DestDir, rel))
	require.NoError(t, err)
	return string(data)
}

func TestInlinesImportsRecursively(t *testing.T) {
	in := stage(t, map[string]string{
		"core/main.css":        "@import \"parts/a.css\";\n@import url(b.css);\nbody{}\n",
		"core/parts/a.css":     "@charset \"utf-8\";\n@import 'inner.css';\n.a{}\n",
		"core/parts/inner.css": ".inner{}",
		"core/b.css":           ".b{}\n",
	})

	require.NoError(t, New(transforms.Options{}).Apply(context.Background(), in))

	require.Equal(t, ".inner{}\n.a{}\n.b{}\nbody{}\n", output(t, in, "core/main.css"))
	require.Equal(t, ".b{}\n", output(t, in, "core/b.css"))
}

func TestKeepsRemoteImports(t *testing.T) {
	in := stage(t, map[string]string{
		"core/main.css": "@import url(http://cdn.example.com/x.css);\n@import \"//cdn.example.com/y.css\";\n.m{}\n",
	})

	require.NoError(t, New(transforms.Options{}).Apply(context.Background(), in))
	require.Equal(t, "@import url(http://cdn.example.com/x.css);\n@import \"//cdn.example.com/y.css\";\n.m{}\n", output(t, in, "core/main.css"))
}

func TestSharedImportInlinedOnce(t *testing.T) {
	in := stage(t, map[string]string{
		"core/main.css": "@import \"a.css\";\n@import \"b.css\";\n",
		"core/a.css":    "@import \"base.css\";\n.a{}\n",
		"core/b.css":    "@import \"base.css\";\n.b{}\n",
		"core/base.css": ".base{}\n",
	})

	require.NoError(t, New(transforms.Options{}).Apply(context.Background(), in))
	require.Equal(t, ".base{}\n.a{}\n.b{}\n", output(t, in, "core/main.css"))
}

func TestImportCycle(t *testing.T) {
	in := stage(t, map[string]string{
		"core/a.css": "@import \"b.css\";\n",
		"core/b.css": "@import \"a.css\";\n",
	})
	require.ErrorContains(t, New(transforms.Options{}).Apply(context.Background(), in), "import cycle")
}

func TestImportErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		in := stage(t, map[string]string{"core/a.css": "@import \"nope.css\";\n"})
		require.ErrorIs(t, New(transforms.Options{}).Apply(context.Background(), in), os.ErrNotExist)
	})
	t.Run("escaping", func(t *testing.T) {
		in := stage(t, map[string]string{"core/a.css": "@import \"../../secret.css\";\n"})
		require.ErrorContains(t, New(transforms.Options{}).Apply(context.Background(), in), "escapes")
	})
}

func TestFactory(t *testing.T) {
	tr, err := Factory(map[string]any{"base": "mods"})
	require.NoError(t, err)
	require.Equal(t, Name, tr.Name())

	_, err = Factory(map[string]any{"base": 1})
	require.Error(t, err)
}
