package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/fsutil"
	"github.com/vk/classkit/internal/model"
)

// Definer accepts class definitions.
type Definer interface {
	Define(ctx context.Context, name string, spec *model.Spec, onCreated func(*class.Class)) error
}

// Evaluator parses class resources and defines the classes they declare.
type Evaluator struct {
	definer Definer
	lib     model.MethodLookup
}

// NewEvaluator creates an Evaluator that binds method blocks through lib.
func NewEvaluator(definer Definer, lib model.MethodLookup) *Evaluator {
	return &Evaluator{definer: definer, lib: lib}
}

// Evaluate parses src and defines every class block in source order. The
// first failing definition stops the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, path string, src []byte) error {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse class resource %s: %w", path, diags)
	}
	defs, diags := model.ParseClassFile(ctx, file, path, e.lib)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode class resource %s: %w", path, diags)
	}

	logger.Debug("Evaluating class resource.", "path", path, "classes", len(defs))
	for _, def := range defs {
		if err := e.definer.Define(ctx, def.Name, def.Spec, nil); err != nil {
			return fmt.Errorf("class %q in %s: %w", def.Name, def.FSInformation.FilePath, err)
		}
	}
	return nil
}

// Preload evaluates every resource with the given extension found under
// paths. Directories are walked recursively; paths that do not exist are
// skipped.
func (e *Evaluator) Preload(ctx context.Context, extension string, paths ...string) (int, error) {
	files, err := fsutil.FindFiles(paths, extension)
	if err != nil {
		return 0, err
	}
	ctxlog.FromContext(ctx).Debug("Preloading class resources.", "count", len(files))
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", f, err)
		}
		if err := e.Evaluate(ctx, f, src); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}
