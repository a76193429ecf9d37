package main

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/npratt/mapedit/internal/app"
	"github.com/npratt/mapedit/internal/config"
	"github.com/npratt/mapedit/internal/controller"
	"github.com/npratt/mapedit/internal/prefs"
	"github.com/npratt/mapedit/internal/prompt"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{line: "undo", want: []string{"undo"}},
		{line: "  add root 0   x  ", want: []string{"add", "root", "0", "x"}},
		{line: `text ID_1 "two words"`, want: []string{"text", "ID_1", "two words"}},
		{line: `text ID_1 "say \"hi\""`, want: []string{"text", "ID_1", `say "hi"`}},
		{line: `text ID_1 'it is "quoted"'`, want: []string{"text", "ID_1", `it is "quoted"`}},
		{line: `text ID_1 two\ words`, want: []string{"text", "ID_1", "two words"}},
		{line: `text ID_1 ""`, want: []string{"text", "ID_1", ""}},
		{line: "a\tb", want: []string{"a", "b"}},
		{line: "", want: []string{}},
		{line: `text ID_1 "open`, wantErr: true},
		{line: `text ID_1 'open`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitArgs(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Errorf("splitArgs(%q) should fail", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitArgs(%q) failed: %v", tt.line, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitArgs(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

// newTestEditor returns an editor on an empty map without locking or files.
func newTestEditor(t *testing.T) (*editor, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Lock.Enabled = false
	cfg.Paths.Preferences = ""

	store, err := prefs.Open("")
	if err != nil {
		t.Fatalf("prefs.Open failed: %v", err)
	}
	ctx, err := app.New(cfg, app.WithPrefs(store), app.WithUI(&prompt.Static{}))
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })

	ctl := controller.New(ctx)
	var out bytes.Buffer
	return &editor{ctl: ctl, m: ctl.NewModel(), out: &out}, &out
}

func TestEditorRun(t *testing.T) {
	ed, out := newTestEditor(t)
	script := `
# two children, then move the second before the first
add root 0 first
add root end second left
undo
redo
`
	if err := ed.Run(strings.NewReader(script)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	ids := strings.Fields(out.String())
	if len(ids) != 2 {
		t.Fatalf("expected two printed IDs, got %q", out.String())
	}
	if err := ed.ExecLine("move " + ids[1] + " root 0"); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	root := ed.m.Root()
	if root.ChildCount() != 2 || root.ChildAt(0).ID() != ids[1] {
		t.Fatalf("unexpected order: %s", renderOutline(ed.m, outlineOptions{IDs: true}))
	}
	if !root.ChildAt(0).IsLeft() {
		t.Error("a move without a side should keep the side")
	}

	if err := ed.ExecLine("move " + ids[1] + " root end right"); err != nil {
		t.Fatalf("move to end failed: %v", err)
	}
	if root.ChildAt(1).ID() != ids[1] || root.ChildAt(1).IsLeft() {
		t.Error("move with a side should change it")
	}
}

func TestEditorErrors(t *testing.T) {
	ed, _ := newTestEditor(t)

	tests := []struct {
		line string
		want error
	}{
		{line: "delete root", want: controller.ErrRoot},
		{line: "add root 5 x", want: controller.ErrInvalidIndex},
		{line: "undo"},
		{line: "save", want: controller.ErrNoFile},
		{line: "add nowhere 0 x"},
		{line: "add root x y"},
		{line: "add root 0 x up"},
		{line: "fold root maybe"},
		{line: "text root"},
		{line: "toggle"},
		{line: "undo now"},
		{line: "sibling root x", want: controller.ErrRoot},
		{line: "before root x", want: controller.ErrRoot},
		{line: "up root", want: controller.ErrRoot},
		{line: "into root"},
		{line: "explode root"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := ed.ExecLine(tt.line)
			if err == nil {
				t.Fatalf("%q should fail", tt.line)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("%q: err = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

func TestEditorRunReportsLine(t *testing.T) {
	ed, _ := newTestEditor(t)

	err := ed.Run(strings.NewReader("add root 0 ok\n\nbogus\n"))
	if err == nil || !strings.HasPrefix(err.Error(), "line 3:") {
		t.Errorf("err = %v, want a line 3 error", err)
	}
}

func TestEditorFoldAndText(t *testing.T) {
	ed, out := newTestEditor(t)

	if err := ed.ExecLine("add root 0 parent"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	parent := strings.TrimSpace(out.String())
	if err := ed.ExecLine("add " + parent + " 0 child"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	for _, line := range []string{"fold " + parent + " on", `text ` + parent + ` "new name"`} {
		if err := ed.ExecLine(line); err != nil {
			t.Fatalf("%q failed: %v", line, err)
		}
	}

	node := ed.m.FindNode(parent)
	if !node.IsFolded() || node.Text() != "new name" {
		t.Errorf("unexpected node state: folded=%v text=%q", node.IsFolded(), node.Text())
	}

	if err := ed.ExecLine("toggle " + parent); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if node.IsFolded() {
		t.Error("toggle should unfold")
	}

	rendered := renderOutline(ed.m, outlineOptions{})
	if !strings.Contains(rendered, "> new name") || !strings.Contains(rendered, "child") {
		t.Errorf("unexpected outline:\n%s", rendered)
	}
}

// addIDs runs add lines and returns the printed IDs.
func addIDs(t *testing.T, ed *editor, out *bytes.Buffer, lines ...string) []string {
	t.Helper()
	out.Reset()
	for _, line := range lines {
		if err := ed.ExecLine(line); err != nil {
			t.Fatalf("%q failed: %v", line, err)
		}
	}
	return strings.Fields(out.String())
}

func childIDs(ed *editor, ref string) []string {
	node, _ := ed.node(ref)
	var ids []string
	for _, child := range node.Children() {
		ids = append(ids, child.ID())
	}
	return ids
}

func TestEditorSiblingAndBefore(t *testing.T) {
	ed, out := newTestEditor(t)
	ids := addIDs(t, ed, out, "add root 0 a left", "add root end b")
	a, b := ids[0], ids[1]

	added := addIDs(t, ed, out, "sibling "+a+" after-a", "before "+b+" before-b")
	afterA, beforeB := added[0], added[1]

	if got, want := childIDs(ed, rootRef), []string{a, afterA, beforeB, b}; !reflect.DeepEqual(got, want) {
		t.Fatalf("children = %v, want %v", got, want)
	}
	if !ed.m.FindNode(afterA).IsLeft() {
		t.Error("a sibling should share the side of its neighbour")
	}
	if ed.m.FindNode(beforeB).IsLeft() {
		t.Error("a node inserted before a right node should be right")
	}

	if err := ed.ExecLine("undo"); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if ed.m.FindNode(beforeB) != nil {
		t.Error("undo should remove the node inserted before")
	}
}

func TestEditorShift(t *testing.T) {
	ed, out := newTestEditor(t)
	ids := addIDs(t, ed, out, "add root 0 x", "add root end y", "add root end z")
	x, y, z := ids[0], ids[1], ids[2]

	steps := []struct {
		line string
		want []string
	}{
		{line: "up " + y, want: []string{y, x, z}},
		{line: "up " + y, want: []string{x, z, y}},
		{line: "down " + x, want: []string{z, x, y}},
		{line: "down " + y, want: []string{y, z, x}},
	}
	for _, step := range steps {
		if err := ed.ExecLine(step.line); err != nil {
			t.Fatalf("%q failed: %v", step.line, err)
		}
		if got := childIDs(ed, rootRef); !reflect.DeepEqual(got, step.want) {
			t.Fatalf("after %q children = %v, want %v", step.line, got, step.want)
		}
	}
}

func TestEditorIntoAndBeside(t *testing.T) {
	ed, out := newTestEditor(t)
	ids := addIDs(t, ed, out, "add root 0 a", "add root end b left", "add root end c")
	a, b, c := ids[0], ids[1], ids[2]

	if err := ed.ExecLine("into " + c + " " + a); err != nil {
		t.Fatalf("into failed: %v", err)
	}
	if got, want := childIDs(ed, a), []string{c}; !reflect.DeepEqual(got, want) {
		t.Fatalf("children of a = %v, want %v", got, want)
	}

	if err := ed.ExecLine("beside " + c + " " + b); err != nil {
		t.Fatalf("beside failed: %v", err)
	}
	if got, want := childIDs(ed, rootRef), []string{a, c, b}; !reflect.DeepEqual(got, want) {
		t.Fatalf("children = %v, want %v", got, want)
	}
	if !ed.m.FindNode(c).IsLeft() {
		t.Error("beside should move the node to the target's side")
	}

	if err := ed.ExecLine("into " + a + " " + c); err != nil {
		t.Fatalf("into a sibling failed: %v", err)
	}
	err := ed.ExecLine("into " + c + " " + a)
	if !errors.Is(err, controller.ErrCycle) {
		t.Errorf("moving a node into its own subtree: err = %v, want ErrCycle", err)
	}
}
