package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/npratt/mapedit/internal/controller"
	"github.com/npratt/mapedit/internal/lock"
	"github.com/npratt/mapedit/internal/mapio"
)

// isolate points the config home at a temp directory so preferences and
// global config of the user running the tests are not touched.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return t.TempDir()
}

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := newCLI(io.Discard)
	cmd := c.rootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--user", "tester", "--yes"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("mapedit %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out := mustRun(t, "version")
	if !strings.Contains(out, "mapedit dev") {
		t.Errorf("version output = %q", out)
	}
	if !strings.Contains(out, mapio.CurrentVersion) {
		t.Errorf("version output should name the map format, got %q", out)
	}
}

func TestNewCommand(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "plan.mm")

	mustRun(t, "new", path, "--root", "Plan")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.HasPrefix(string(data), mapio.CurrentSignature()) {
		t.Errorf("document should start with the signature, got %q", data)
	}
	if !strings.Contains(string(data), `TEXT="Plan"`) {
		t.Errorf("root text missing: %s", data)
	}
	if _, err := os.Stat(lock.SemaphorePath(path)); !os.IsNotExist(err) {
		t.Error("the lock should be released when the command ends")
	}

	if _, err := run(t, "new", path); err == nil {
		t.Error("new should refuse to overwrite an existing map")
	}
	mustRun(t, "new", path, "--force", "--root", "Again")
}

func TestEditAndShow(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "plan.mm")
	mustRun(t, "new", path, "--root", "Plan")

	out := mustRun(t, "edit", path,
		"-e", `add root 0 "Left idea" left`,
		"-e", `add root end Right`,
	)
	ids := strings.Fields(out)
	if len(ids) != 2 {
		t.Fatalf("edit should print one ID per added node, got %q", out)
	}

	script := filepath.Join(dir, "ops.txt")
	content := strings.Join([]string{
		"# grow the left branch",
		"add " + ids[0] + " 0 Detail",
		"add " + ids[0] + " end More",
		"text " + ids[1] + ` "Right idea"`,
		"fold " + ids[0] + " on",
	}, "\n")
	if err := os.WriteFile(script, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	mustRun(t, "edit", path, "--script", script)

	shown := mustRun(t, "show", path)
	for _, want := range []string{"Plan", "< Left idea [+2]", "> Right idea"} {
		if !strings.Contains(shown, want) {
			t.Errorf("show output missing %q:\n%s", want, shown)
		}
	}
	if strings.Contains(shown, "Detail") {
		t.Errorf("children of folded nodes should be hidden:\n%s", shown)
	}

	all := mustRun(t, "show", path, "--all", "--ids")
	if !strings.Contains(all, "Detail") || !strings.Contains(all, ids[0]) {
		t.Errorf("show --all --ids output incomplete:\n%s", all)
	}

	var tree outlineNode
	if err := json.Unmarshal([]byte(mustRun(t, "show", path, "--json")), &tree); err != nil {
		t.Fatalf("show --json is not JSON: %v", err)
	}
	if tree.Text != "Plan" || len(tree.Children) != 2 {
		t.Fatalf("unexpected tree: %+v", tree)
	}
	left := tree.Children[0]
	if left.Side != "left" || !left.Folded || len(left.Children) != 2 {
		t.Errorf("unexpected left branch: %+v", left)
	}
	if left.Children[0].Side != "left" {
		t.Errorf("deeper nodes should report their branch side, got %q", left.Children[0].Side)
	}
}

func TestEditRequiresOperations(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "plan.mm")
	mustRun(t, "new", path)

	if _, err := run(t, "edit", path); err == nil {
		t.Error("edit without operations should fail")
	}
}

func TestEditReportsFailingOperation(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "plan.mm")
	mustRun(t, "new", path)

	_, err := run(t, "edit", path, "-e", "delete root")
	if !errors.Is(err, controller.ErrRoot) {
		t.Errorf("err = %v, want ErrRoot", err)
	}
}

func TestEditRefusesMapLockedByOtherEditor(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "plan.mm")
	mustRun(t, "new", path)

	other := lock.New("bob")
	if _, err := other.TryToLock(path); err != nil {
		t.Fatalf("TryToLock failed: %v", err)
	}
	defer func() { _ = other.Release() }()

	_, err := run(t, "edit", path, "-e", "add root 0 x")
	if !errors.Is(err, controller.ErrReadOnly) {
		t.Errorf("err = %v, want ErrReadOnly", err)
	}

	out := mustRun(t, "lock", "status", path)
	if !strings.Contains(out, "locked by bob") {
		t.Errorf("lock status = %q", out)
	}
}

func TestLockStatusAndClear(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "plan.mm")
	mustRun(t, "new", path)

	out := mustRun(t, "lock", "status", path)
	if !strings.Contains(out, "is not locked") {
		t.Errorf("lock status = %q", out)
	}

	if err := os.WriteFile(lock.SemaphorePath(path), []byte("alice\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var status lockStatus
	if err := json.Unmarshal([]byte(mustRun(t, "lock", "status", path, "--json")), &status); err != nil {
		t.Fatalf("lock status --json is not JSON: %v", err)
	}
	if !status.Locked || status.User != "alice" {
		t.Errorf("unexpected status: %+v", status)
	}

	mustRun(t, "lock", "clear", path)
	if _, err := os.Stat(lock.SemaphorePath(path)); !os.IsNotExist(err) {
		t.Error("lock clear should remove the semaphore")
	}
}

func TestMigrateCommand(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "old.mm")
	old := `<mindmap><topic text="Idea" folded="yes" side="l"></topic></mindmap>`
	if err := os.WriteFile(path, []byte(old), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	out := mustRun(t, "migrate", path)
	if !strings.HasPrefix(out, mapio.CurrentSignature()) {
		t.Errorf("migrated document should start with the signature, got %q", out)
	}
	for _, want := range []string{`TEXT="Idea"`, `FOLDED="true"`, `POSITION="left"`} {
		if !strings.Contains(out, want) {
			t.Errorf("migrated document missing %s: %s", want, out)
		}
	}

	target := filepath.Join(dir, "new.mm")
	mustRun(t, "migrate", path, "-o", target)
	shown := mustRun(t, "show", target)
	if !strings.Contains(shown, "Idea") {
		t.Errorf("converted file should load, got:\n%s", shown)
	}
}

func TestCopyAndPasteCommands(t *testing.T) {
	dir := isolate(t)
	var board string
	oldRead, oldWrite := clipboardRead, clipboardWrite
	clipboardWrite = func(s string) error { board = s; return nil }
	clipboardRead = func() (string, error) { return board, nil }
	t.Cleanup(func() { clipboardRead, clipboardWrite = oldRead, oldWrite })

	path := filepath.Join(dir, "plan.mm")
	mustRun(t, "new", path, "--root", "Plan")
	ids := strings.Fields(mustRun(t, "edit", path,
		"-e", "add root 0 Branch",
		"-e", "add root 1 Other",
	))
	mustRun(t, "edit", path, "-e", "add "+ids[0]+" 0 Leaf")

	mustRun(t, "copy", path, ids[0])
	if !strings.Contains(board, `TEXT="Branch"`) {
		t.Fatalf("clipboard = %q", board)
	}

	pasted := strings.TrimSpace(mustRun(t, "paste", path, ids[1]))
	if pasted == "" || pasted == ids[0] {
		t.Errorf("pasted node should get a fresh ID, got %q", pasted)
	}

	var tree outlineNode
	if err := json.Unmarshal([]byte(mustRun(t, "show", path, "--json")), &tree); err != nil {
		t.Fatalf("show --json is not JSON: %v", err)
	}
	other := tree.Children[1]
	if len(other.Children) != 1 || other.Children[0].Text != "Branch" || len(other.Children[0].Children) != 1 {
		t.Errorf("unexpected pasted subtree: %+v", other)
	}
}

func TestRecentCommand(t *testing.T) {
	dir := isolate(t)

	if out := mustRun(t, "recent"); !strings.Contains(out, "No recent maps") {
		t.Errorf("recent = %q", out)
	}

	first := filepath.Join(dir, "one.mm")
	second := filepath.Join(dir, "two.mm")
	mustRun(t, "new", first)
	mustRun(t, "new", second)
	mustRun(t, "show", first)

	out := mustRun(t, "recent")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("recent = %q", out)
	}
	if !strings.HasSuffix(lines[0], first) || !strings.HasSuffix(lines[1], second) {
		t.Errorf("recent should list newest first, got %q", out)
	}
}

func TestConfigCommand(t *testing.T) {
	isolate(t)
	out := mustRun(t, "config")
	for _, want := range []string{"save_folding: if_map_changed", "user: tester", "assume_yes: true"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
}

func TestPrefsCommand(t *testing.T) {
	isolate(t)

	mustRun(t, "prefs", "set", "confirm.really_convert_to_current_version", "true")
	mustRun(t, "prefs", "set", "confirm.other_question", "false")
	mustRun(t, "prefs", "set", "ui.theme", "dark")

	if out := mustRun(t, "prefs", "get", "ui.theme"); strings.TrimSpace(out) != "dark" {
		t.Errorf("prefs get = %q", out)
	}
	out := mustRun(t, "prefs", "list")
	for _, want := range []string{"confirm.other_question = false", "ui.theme = dark"} {
		if !strings.Contains(out, want) {
			t.Errorf("prefs list missing %q:\n%s", want, out)
		}
	}

	mustRun(t, "prefs", "reset", "really_convert_to_current_version")
	if out := mustRun(t, "prefs", "get", "confirm.really_convert_to_current_version"); strings.TrimSpace(out) != "" {
		t.Errorf("answer should be forgotten, got %q", out)
	}

	if out := mustRun(t, "prefs", "reset", "--all"); !strings.Contains(out, "1 answer(s) forgotten") {
		t.Errorf("reset --all = %q", out)
	}
	if out := mustRun(t, "prefs", "list"); strings.Contains(out, "confirm.") {
		t.Errorf("no answers should remain:\n%s", out)
	}

	if _, err := run(t, "prefs", "reset"); err == nil {
		t.Error("reset without a question or --all should fail")
	}
}

func TestEditRefusesUnreadableMap(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "broken.mm")
	const content = `<map version="0.9.0"><node TEXT="a"><node></map>`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write map: %v", err)
	}

	_, err := run(t, "edit", path, "-e", "add root 0 x")
	if !errors.Is(err, controller.ErrReadOnly) {
		t.Errorf("err = %v, want ErrReadOnly", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != content {
		t.Errorf("the unreadable map must stay untouched, got %q (%v)", data, err)
	}
}
