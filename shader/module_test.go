package shader

import (
	"errors"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	m := New(StageVertex, "blit", code)

	if m.Stage() != StageVertex {
		t.Errorf("Stage() = %v, want vertex", m.Stage())
	}
	if m.Label() != "blit" {
		t.Errorf("Label() = %q, want blit", m.Label())
	}
	if m.Refs() != 1 {
		t.Errorf("Refs() = %d, want 1", m.Refs())
	}
	if m.Hash() != HashCode(code) {
		t.Errorf("Hash() = %x, want %x", m.Hash(), HashCode(code))
	}
	if m.ID() == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestContentHashIndependentOfIdentity(t *testing.T) {
	code := []byte("same bytecode")
	a := New(StageFragment, "a", code)
	b := New(StageFragment, "b", append([]byte(nil), code...))

	if a.Hash() != b.Hash() {
		t.Errorf("expected equal content hashes, got %x and %x", a.Hash(), b.Hash())
	}
	if Same(a, b) {
		t.Error("distinct modules must not be the same object")
	}
	if !Same(a, a) {
		t.Error("module must be the same as itself")
	}
	if !Same(nil, nil) {
		t.Error("two nil handles must be the same")
	}
	if a.ID() == b.ID() {
		t.Error("distinct modules must have distinct IDs")
	}
}

func TestHashOf(t *testing.T) {
	if HashOf(nil) != 0 {
		t.Errorf("HashOf(nil) = %x, want 0", HashOf(nil))
	}
	m := New(StageCompute, "cs", []byte{1, 2, 3})
	if HashOf(m) != m.Hash() {
		t.Errorf("HashOf(m) = %x, want %x", HashOf(m), m.Hash())
	}
}

func TestWords(t *testing.T) {
	m := New(StageCompute, "cs", []byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00, 0xff})
	words := m.Words()
	if len(words) != 2 {
		t.Fatalf("len(Words()) = %d, want 2", len(words))
	}
	if words[0] != 0x07230203 {
		t.Errorf("words[0] = %#x, want SPIR-V magic 0x07230203", words[0])
	}
	if words[1] != 1 {
		t.Errorf("words[1] = %d, want 1", words[1])
	}
}

func TestRetainRelease(t *testing.T) {
	m := New(StageVertex, "vs", []byte{1})
	released := 0
	m.OnRelease(func(*Module) { released++ })

	m.Retain()
	if m.Refs() != 2 {
		t.Fatalf("Refs() = %d, want 2", m.Refs())
	}
	if m.Release() {
		t.Error("first Release should not be the last")
	}
	if released != 0 {
		t.Errorf("release hook ran early (%d)", released)
	}
	if !m.Release() {
		t.Error("second Release should be the last")
	}
	if released != 1 {
		t.Errorf("release hook ran %d times, want 1", released)
	}
}

func TestReleaseUnderflowPanics(t *testing.T) {
	m := New(StageVertex, "vs", []byte{1})
	m.Release()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on release without references")
		}
	}()
	m.Release()
}

func TestConcurrentRetainRelease(t *testing.T) {
	m := New(StageVertex, "vs", []byte{1})
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Retain()
			m.Release()
		}()
	}
	wg.Wait()

	if m.Refs() != 1 {
		t.Errorf("Refs() = %d, want 1", m.Refs())
	}
}

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageVertex, "vertex"},
		{StageTessControl, "tess_control"},
		{StageTessEval, "tess_eval"},
		{StageGeometry, "geometry"},
		{StageFragment, "fragment"},
		{StageCompute, "compute"},
		{Stage(42), "Stage(42)"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", tt.stage, got, tt.want)
		}
	}
}

func TestStageFromFileName(t *testing.T) {
	tests := []struct {
		name      string
		wantStage Stage
		wantLabel string
		wantErr   bool
	}{
		{"shaders/blit.vert.wgsl", StageVertex, "blit", false},
		{"blit.frag.wgsl", StageFragment, "blit", false},
		{"tile.comp.wgsl", StageCompute, "tile", false},
		{"hull.tesc.wgsl", StageTessControl, "hull", false},
		{"domain.tese.wgsl", StageTessEval, "domain", false},
		{"sprite.geom.wgsl", StageGeometry, "sprite", false},
		{"plain.wgsl", 0, "", true},
		{".vert.wgsl", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage, label, err := StageFromFileName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownStage) {
					t.Errorf("expected ErrUnknownStage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if stage != tt.wantStage || label != tt.wantLabel {
				t.Errorf("got (%v, %q), want (%v, %q)", stage, label, tt.wantStage, tt.wantLabel)
			}
		})
	}
}

func TestFromWGSLEmpty(t *testing.T) {
	_, err := FromWGSL(StageCompute, "empty", "  \n")
	if !errors.Is(err, ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

func TestFromWGSL(t *testing.T) {
	const src = `
@compute @workgroup_size(64)
fn main() {
}
`
	a, err := FromWGSL(StageCompute, "noop", src)
	if err != nil {
		t.Fatalf("FromWGSL: %v", err)
	}
	b, err := FromWGSL(StageCompute, "noop", src)
	if err != nil {
		t.Fatalf("FromWGSL: %v", err)
	}

	if len(a.Code()) == 0 {
		t.Fatal("expected SPIR-V output")
	}
	if a.Hash() != b.Hash() {
		t.Error("same source should produce the same content hash")
	}
	if Same(a, b) {
		t.Error("separately compiled modules must be distinct objects")
	}
}
