package shader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gogpu/naga"
)

// ErrEmptySource is returned when compiling empty WGSL source.
var ErrEmptySource = errors.New("shader: empty WGSL source")

// ErrUnknownStage is returned when a stage cannot be derived from a file name.
var ErrUnknownStage = errors.New("shader: cannot derive stage from file name")

// FromWGSL compiles WGSL source to SPIR-V and wraps it in a Module.
func FromWGSL(stage Stage, label, source string) (*Module, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}

	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("shader: compile %s: %w", label, err)
	}
	return New(stage, label, spirv), nil
}

// stageSuffixes maps file name suffixes to stages.
var stageSuffixes = []struct {
	suffix string
	stage  Stage
}{
	{".vert.wgsl", StageVertex},
	{".tesc.wgsl", StageTessControl},
	{".tese.wgsl", StageTessEval},
	{".geom.wgsl", StageGeometry},
	{".frag.wgsl", StageFragment},
	{".comp.wgsl", StageCompute},
}

// StageFromFileName derives the stage from a file name such as
// "blit.vert.wgsl". It returns the stage and the name without its suffix.
func StageFromFileName(name string) (Stage, string, error) {
	base := filepath.Base(name)
	for _, s := range stageSuffixes {
		if label, ok := strings.CutSuffix(base, s.suffix); ok && label != "" {
			return s.stage, label, nil
		}
	}
	return 0, "", fmt.Errorf("%w: %s", ErrUnknownStage, base)
}
