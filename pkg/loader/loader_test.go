package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDeduplicatesSharedImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.kooix", `record Shared { a: Int; }`)
	writeFile(t, dir, "left.kooix", `import "shared.kooix" as L;`)
	entry := writeFile(t, dir, "main.kooix", `
import "shared.kooix" as M;
import "left.kooix" as Left;
`)

	sourceMap, graph, diags := Load(entry)
	require.Empty(t, diags)
	require.Equal(t, entry, graph.Entry)

	seen := map[string]int{}
	for _, f := range sourceMap.Files {
		seen[filepath.Base(f.Path)]++
	}
	require.Equal(t, 1, seen["shared.kooix"])
	require.Equal(t, 1, seen["left.kooix"])
	require.Equal(t, 1, seen["main.kooix"])

	// dependencies-first ordering: shared must precede both its importers.
	order := map[string]int{}
	for i, f := range sourceMap.Files {
		order[filepath.Base(f.Path)] = i
	}
	require.Less(t, order["shared.kooix"], order["left.kooix"])
	require.Less(t, order["left.kooix"], order["main.kooix"])
}

func TestLoadImportWithNamespaceAlias(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.kooix", `record Util { a: Int; }`)
	entry := writeFile(t, dir, "main.kooix", `import "util.kooix" as Util;`)

	_, graph, diags := Load(entry)
	require.Empty(t, diags)
	require.Len(t, graph.Modules, 2)

	var mainNode *ModuleNode
	for i := range graph.Modules {
		if filepath.Base(graph.Modules[i].Path) == "main.kooix" {
			mainNode = &graph.Modules[i]
		}
	}
	require.NotNil(t, mainNode)
	require.Len(t, mainNode.Imports, 1)
	require.True(t, mainNode.Imports[0].HasNS)
	require.Equal(t, "Util", mainNode.Imports[0].NS)
}

func TestLoadMissingImportSemicolonErrors(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.kooix", `import "util.kooix"`)

	_, _, diags := Load(entry)
	require.NotEmpty(t, diags)
	require.Contains(t, diags[0].Message, "import declaration must end with ';'")
}

func TestLoadProgramsParsesEveryFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.kooix", `record Shared { a: Int; }`)
	entry := writeFile(t, dir, "main.kooix", `
import "shared.kooix" as S;
fn main() -> Int { 0 }
`)

	graph, modules, diags := LoadPrograms(entry)
	require.Empty(t, diags)
	require.Len(t, modules, 2)
	require.Equal(t, entry, graph.Entry)
	last := modules[len(modules)-1]
	require.Equal(t, filepath.Base(entry), filepath.Base(last.Path))
	require.Len(t, last.Program.Items, 2)
}
