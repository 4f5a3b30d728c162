// Package parse extracts definitions from source files using tree-sitter.
package parse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/surc/internal/discover"
	"github.com/phobologic/surc/internal/lang"
	"github.com/phobologic/surc/internal/model"
)

var captureKinds = map[string]model.CodeKind{
	"definition.class":    model.Class,
	"definition.function": model.Function,
	"definition.method":   model.Method,
}

// Definitions parses one source file and returns its class, function and
// method definitions in source order. The parser must be created for l.
// filePath is recorded on each symbol and should be workspace-relative.
func Definitions(ctx context.Context, l *lang.Language, parser *sitter.Parser, source []byte, filePath string) ([]model.CodeSymbol, error) {
	if len(source) == 0 {
		return nil, nil
	}
	query, err := l.DefinitionQuery()
	if err != nil {
		return nil, err
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var syms []model.CodeSymbol
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode, defNode *sitter.Node
		var kind model.CodeKind
		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			if cname == "name" {
				nameNode = c.Node
			} else if k, ok := captureKinds[cname]; ok {
				kind = k
				defNode = c.Node
			}
		}
		if nameNode == nil || defNode == nil {
			continue
		}

		var container string
		if kind != model.Class && l.Container != nil {
			container = l.Container(defNode, source)
		}
		if kind == model.Function && container != "" {
			kind = model.Method
		}

		syms = append(syms, model.CodeSymbol{
			Name:      lang.NodeText(nameNode, source),
			Kind:      kind,
			Container: container,
			Language:  l.Name,
			File:      filePath,
			Line:      int(nameNode.StartPoint().Row) + 1,
		})
	}
	return syms, nil
}

// Files extracts definitions from files under root concurrently. Files that
// cannot be read or parsed are logged and skipped. Symbols are returned in
// file order.
func Files(ctx context.Context, root string, files []discover.FileEntry, log *slog.Logger) []model.CodeSymbol {
	if log == nil {
		log = slog.Default()
	}
	if len(files) == 0 {
		return nil
	}

	type result struct {
		index int
		syms  []model.CodeSymbol
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Parsers are per goroutine; queries are shared.
			parsers := make(map[string]*sitter.Parser)

			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				f := files[idx]
				l, ok := lang.Languages[f.Language]
				if !ok {
					continue
				}
				p, ok := parsers[f.Language]
				if !ok {
					p = l.NewParser()
					parsers[f.Language] = p
				}

				source, err := os.ReadFile(filepath.Join(root, f.Path))
				if err != nil {
					log.Warn("Skipping unreadable source file", slog.String("path", f.Path), slog.String("error", err.Error()))
					continue
				}
				syms, err := Definitions(ctx, l, p, source, f.Path)
				if err != nil {
					log.Warn("Skipping unparseable source file", slog.String("path", f.Path), slog.String("error", err.Error()))
					continue
				}
				results <- result{index: idx, syms: syms}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	indexed := make([][]model.CodeSymbol, len(files))
	for r := range results {
		indexed[r.index] = r.syms
	}

	var out []model.CodeSymbol
	for _, syms := range indexed {
		out = append(out, syms...)
	}
	return out
}
