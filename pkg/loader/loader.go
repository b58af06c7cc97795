// Package loader resolves an entry file's transitive `import` graph into a
// concatenated SourceMap and a ModuleGraph, the way minzc's pkg/module
// resolver walks a search path, but generalized to Kooix's flat
// relative-import model instead of minzc's stdlib-search-path convention.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/lexer"
	"github.com/telagod/kooixc/pkg/parser"
	"github.com/telagod/kooixc/pkg/position"
	"github.com/telagod/kooixc/pkg/token"
)

// SourceFile is one file's contribution to a combined SourceMap.
type SourceFile struct {
	Path   string
	Source string
	Start  int
	End    int
}

// ImportEdge is one resolved `import` spec found in a module.
type ImportEdge struct {
	Raw      string
	Resolved string
	NS       string
	HasNS    bool
}

// ModuleNode is one file's position in the ModuleGraph.
type ModuleNode struct {
	Path    string
	Imports []ImportEdge
}

// ModuleGraph is the full set of discovered modules reachable from Entry.
type ModuleGraph struct {
	Entry   string
	Modules []ModuleNode
}

// SourceMap is every reachable file concatenated into one buffer, each
// preceded by a "// --- file: <path> ---" marker.
type SourceMap struct {
	Combined string
	Files    []SourceFile
}

// Locate finds the SourceFile owning a byte offset in Combined, if any.
func (m *SourceMap) Locate(byteIndex int) (SourceFile, bool) {
	for _, f := range m.Files {
		if byteIndex >= f.Start && byteIndex < f.End {
			return f, true
		}
	}
	return SourceFile{}, false
}

// Load resolves entry's transitive imports into a SourceMap and the
// ModuleGraph describing the dependency edges between files.
func Load(entry string) (*SourceMap, *ModuleGraph, []diagnostic.Diagnostic) {
	l := &loader{visited: map[string]bool{}}
	if diags := l.loadFile(entry); len(diags) > 0 {
		return nil, nil, diags
	}
	return &SourceMap{Combined: l.combined, Files: l.files},
		&ModuleGraph{Entry: entry, Modules: l.modules}, nil
}

// LoadedModule pairs one resolved file with its parsed Program.
type LoadedModule struct {
	Path    string
	Program *ast.Program
}

// LoadPrograms resolves entry's import graph and parses every reachable
// file, returning them alongside the ModuleGraph in dependency order
// (dependencies first) for module normalization to consume.
func LoadPrograms(entry string) (*ModuleGraph, []LoadedModule, []diagnostic.Diagnostic) {
	sourceMap, graph, diags := Load(entry)
	if len(diags) > 0 {
		return nil, nil, diags
	}

	var modules []LoadedModule
	for _, file := range sourceMap.Files {
		tokens, lexErr := lexer.Lex(file.Source)
		if lexErr != nil {
			return nil, nil, []diagnostic.Diagnostic{qualify(file.Path, file.Source, *lexErr)}
		}
		program, parseErr := parser.Parse(tokens)
		if parseErr != nil {
			return nil, nil, []diagnostic.Diagnostic{qualify(file.Path, file.Source, *parseErr)}
		}
		modules = append(modules, LoadedModule{Path: file.Path, Program: program})
	}

	return graph, modules, nil
}

type loader struct {
	combined string
	files    []SourceFile
	modules  []ModuleNode
	visited  map[string]bool
}

func (l *loader) loadFile(path string) []diagnostic.Diagnostic {
	canonical := path
	if abs, err := filepath.Abs(path); err == nil {
		canonical = abs
	}
	if l.visited[canonical] {
		return nil
	}
	l.visited[canonical] = true

	raw, err := os.ReadFile(path)
	if err != nil {
		return []diagnostic.Diagnostic{diagnostic.NewError(position.Span{},
			"failed to read file '%s': %s", path, err)}
	}
	source := string(raw)

	tokens, lexErr := lexer.Lex(source)
	if lexErr != nil {
		return []diagnostic.Diagnostic{qualify(path, source, *lexErr)}
	}

	imports, specErr := collectImportSpecs(tokens)
	if specErr != nil {
		return []diagnostic.Diagnostic{qualify(path, source, *specErr)}
	}

	baseDir := filepath.Dir(path)
	var edges []ImportEdge
	for _, imp := range imports {
		resolved := resolveImportPath(baseDir, imp.path)
		edges = append(edges, ImportEdge{Raw: imp.path, Resolved: resolved, NS: imp.ns, HasNS: imp.hasNS})
		if diags := l.loadFile(resolved); len(diags) > 0 {
			return diags
		}
	}

	l.modules = append(l.modules, ModuleNode{Path: canonical, Imports: edges})
	l.appendFile(path, source)
	return nil
}

func (l *loader) appendFile(path, source string) {
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	source += "\n"

	l.combined += fmt.Sprintf("// --- file: %s ---\n", path)
	start := len(l.combined)
	l.combined += source
	end := len(l.combined)

	l.files = append(l.files, SourceFile{Path: path, Source: source, Start: start, End: end})
}

type importSpec struct {
	path  string
	ns    string
	hasNS bool
}

// collectImportSpecs scans only `import` specs at brace/paren/bracket
// depth 0, without parsing the rest of the file.
func collectImportSpecs(tokens []token.Token) ([]importSpec, *diagnostic.Diagnostic) {
	var imports []importSpec
	depth := 0
	idx := 0

	for idx < len(tokens) {
		tok := tokens[idx]
		switch tok.Kind {
		case token.LBrace, token.LParen, token.LBracket:
			depth++
			idx++
			continue
		case token.RBrace, token.RParen, token.RBracket:
			if depth > 0 {
				depth--
			}
			idx++
			continue
		case token.KwImport:
			if depth != 0 {
				idx++
				continue
			}
			span := tok.Span
			pathTok, ok := at(tokens, idx+1)
			if !ok || pathTok.Kind != token.String {
				if !ok {
					d := diagnostic.NewError(span, "import declaration is missing a string literal path")
					return nil, &d
				}
				d := diagnostic.NewError(pathTok.Span, "import expects string literal path, found %s", pathTok.Kind)
				return nil, &d
			}

			var ns string
			hasNS := false
			var endIdx int
			next, hasNext := at(tokens, idx+2)
			switch {
			case hasNext && next.Kind == token.Semicolon:
				endIdx = idx + 3
			case hasNext && next.Kind == token.KwAs:
				nsTok, ok := at(tokens, idx+3)
				if !ok {
					d := diagnostic.NewError(span, "import declaration is missing a namespace after 'as'")
					return nil, &d
				}
				if nsTok.Kind != token.Ident {
					d := diagnostic.NewError(nsTok.Span, "import expects identifier after 'as', found %s", nsTok.Kind)
					return nil, &d
				}
				ns = nsTok.Text
				hasNS = true
				semi, ok := at(tokens, idx+4)
				if !ok || semi.Kind != token.Semicolon {
					d := diagnostic.NewError(span, "import declaration must end with ';'")
					return nil, &d
				}
				endIdx = idx + 5
			default:
				d := diagnostic.NewError(span, "import declaration must end with ';'")
				return nil, &d
			}

			imports = append(imports, importSpec{path: pathTok.Text, ns: ns, hasNS: hasNS})
			idx = endIdx
			continue
		}
		idx++
	}

	return imports, nil
}

func at(tokens []token.Token, idx int) (token.Token, bool) {
	if idx < 0 || idx >= len(tokens) {
		return token.Token{}, false
	}
	return tokens[idx], true
}

func resolveImportPath(baseDir, raw string) string {
	var resolved string
	if filepath.IsAbs(raw) {
		resolved = raw
	} else {
		resolved = filepath.Join(baseDir, raw)
	}
	if filepath.Ext(resolved) == "" {
		resolved += ".kooix"
	}
	return resolved
}

func qualify(path, source string, d diagnostic.Diagnostic) diagnostic.Diagnostic {
	line, col := position.LineCol(source, d.Span.Start)
	message := fmt.Sprintf("%s:%d:%d: %s", path, line, col, d.Message)
	return diagnostic.Diagnostic{Severity: d.Severity, Message: message, Span: position.Span{}}
}
