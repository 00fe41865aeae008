package analysis

import (
	"go/ast"
	"go/parser"
	"go/token"
	gotypes "go/types"
	"testing"
)

const flowSource = `package p

type point struct{ x, y int }

func (p *point) move() { p.x++ }

func f(n int, s []int) int {
	sum := 0
	var arr [2]int
	pt := point{}
	ro := n * 2
	sum += n
	arr[0] = ro
	pt.move()
	s[0] = 1
	res := sum + ro
	_ = pt
	return res + arr[0]
}
`

func analyzeFlowSource(t *testing.T, start, end int, reserved ...string) *Flow {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", flowSource, 0)
	if err != nil {
		t.Fatalf("Failed to parse source: %v", err)
	}
	info := NewInfo()
	if _, err := (&gotypes.Config{}).Check("example.com/p", fset, []*ast.File{file}, info); err != nil {
		t.Fatalf("Failed to type-check source: %v", err)
	}
	frag, err := FindFragment(fset, file, start, end)
	if err != nil {
		t.Fatalf("FindFragment failed: %v", err)
	}
	return AnalyzeFlow(info, frag, reserved...)
}

func TestAnalyzeFlow(t *testing.T) {
	flow := analyzeFlowSource(t, 12, 16, "Invoke")

	want := []struct {
		name      string
		field     string
		assigned  bool
		usedAfter bool
	}{
		{"sum", "Sum", true, false},
		{"n", "N", false, false},
		{"arr", "Arr", true, true},
		{"ro", "Ro", false, false},
		{"pt", "Pt", true, true},
		{"s", "S", false, false},
	}
	if len(flow.Inputs) != len(want) {
		names := make([]string, len(flow.Inputs))
		for i, v := range flow.Inputs {
			names[i] = v.Obj.Name()
		}
		t.Fatalf("Expected %d inputs, got %v", len(want), names)
	}
	for i, tt := range want {
		v := flow.Inputs[i]
		if v.Obj.Name() != tt.name {
			t.Errorf("Input %d: expected %s, got %s", i, tt.name, v.Obj.Name())
			continue
		}
		if v.Field != tt.field {
			t.Errorf("%s: expected field %s, got %s", tt.name, tt.field, v.Field)
		}
		if v.Assigned != tt.assigned {
			t.Errorf("%s: expected Assigned=%v", tt.name, tt.assigned)
		}
		if v.UsedAfter != tt.usedAfter {
			t.Errorf("%s: expected UsedAfter=%v", tt.name, tt.usedAfter)
		}
	}

	if len(flow.Escaping) != 1 || flow.Escaping[0].Obj.Name() != "res" {
		t.Errorf("Expected res to escape, got %d escaping variables", len(flow.Escaping))
	}

	outputs := flow.Outputs()
	if len(outputs) != 3 {
		t.Errorf("Expected 3 outputs, got %d", len(outputs))
	}
}

func TestAnalyzeFlow_ReservedNames(t *testing.T) {
	flow := analyzeFlowSource(t, 12, 12, "Sum")
	if len(flow.Inputs) != 2 {
		t.Fatalf("Expected 2 inputs, got %d", len(flow.Inputs))
	}
	if got := flow.Inputs[0].Field; got != "Sum2" {
		t.Errorf("Expected Sum2, got %s", got)
	}
}

func TestExportedName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"count", "Count"},
		{"httpServer", "HttpServer"},
		{"Already", "Already"},
		{"x", "X"},
		{"_", "V_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExportedName(tt.name); got != tt.want {
				t.Errorf("ExportedName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
