package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/npratt/mapedit/internal/controller"
	"github.com/npratt/mapedit/internal/mapmodel"
)

// Edit operations understood by scripts and --exec.
const (
	opAdd     = "add"
	opSibling = "sibling"
	opBefore  = "before"
	opDelete  = "delete"
	opMove    = "move"
	opUp      = "up"
	opDown    = "down"
	opInto    = "into"
	opBeside  = "beside"
	opFold    = "fold"
	opToggle  = "toggle"
	opText    = "text"
	opUndo    = "undo"
	opRedo    = "redo"
	opSave    = "save"
)

// rootRef addresses the root node in scripts.
const rootRef = "root"

// editor applies edit operations to one map through the controller.
type editor struct {
	ctl *controller.MapController
	m   *mapmodel.Map
	out io.Writer
}

// Run executes one operation per line. Blank lines and lines starting with
// # are ignored. The first failing line stops the script.
func (e *editor) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := e.ExecLine(text); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

// ExecLine splits line into arguments and executes them.
func (e *editor) ExecLine(line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	return e.Exec(args)
}

// Exec executes a single operation.
func (e *editor) Exec(args []string) error {
	if len(args) == 0 {
		return nil
	}
	op, args := args[0], args[1:]

	switch op {
	case opAdd:
		if len(args) < 3 || len(args) > 4 {
			return usage(op, "PARENT INDEX TEXT [left|right]")
		}
		parent, err := e.node(args[0])
		if err != nil {
			return err
		}
		index, err := parseIndex(args[1], parent.ChildCount())
		if err != nil {
			return err
		}
		left := false
		if len(args) == 4 {
			if left, err = parseSide(args[3]); err != nil {
				return err
			}
		}
		node, err := e.ctl.AddNewNode(parent, index, left, args[2])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(e.out, node.ID())
		return nil

	case opSibling:
		if len(args) != 2 {
			return usage(op, "ID TEXT")
		}
		target, err := e.node(args[0])
		if err != nil {
			return err
		}
		parent := target.Parent()
		if parent == nil {
			return fmt.Errorf("sibling of %s: %w", args[0], controller.ErrRoot)
		}
		node, err := e.ctl.AddNewNode(parent, target.Index()+1, target.IsLeft(), args[1])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(e.out, node.ID())
		return nil

	case opBefore:
		if len(args) != 2 {
			return usage(op, "ID TEXT")
		}
		target, err := e.node(args[0])
		if err != nil {
			return err
		}
		node := mapmodel.NewNode(args[1])
		if err := e.ctl.InsertNodeRelative(node, target, true, target.IsLeft(), true); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(e.out, node.ID())
		return nil

	case opDelete:
		if len(args) != 1 {
			return usage(op, "ID")
		}
		node, err := e.node(args[0])
		if err != nil {
			return err
		}
		return e.ctl.DeleteNode(node)

	case opMove:
		if len(args) < 3 || len(args) > 4 {
			return usage(op, "ID PARENT INDEX [left|right]")
		}
		node, err := e.node(args[0])
		if err != nil {
			return err
		}
		parent, err := e.node(args[1])
		if err != nil {
			return err
		}
		last := parent.ChildCount()
		if node.Parent() == parent {
			last--
		}
		index, err := parseIndex(args[2], last)
		if err != nil {
			return err
		}
		left, changeSide := false, len(args) == 4
		if changeSide {
			if left, err = parseSide(args[3]); err != nil {
				return err
			}
		}
		return e.ctl.MoveNode(node, parent, index, left, changeSide)

	case opUp, opDown:
		if len(args) != 1 {
			return usage(op, "ID")
		}
		node, err := e.node(args[0])
		if err != nil {
			return err
		}
		return e.shift(node, op == opUp)

	case opInto, opBeside:
		if len(args) != 2 {
			return usage(op, "ID TARGET")
		}
		node, err := e.node(args[0])
		if err != nil {
			return err
		}
		target, err := e.node(args[1])
		if err != nil {
			return err
		}
		if op == opInto {
			return e.ctl.MoveNodeRelative(node, target, false, false, false)
		}
		return e.ctl.MoveNodeRelative(node, target, true, target.IsLeft(), true)

	case opFold:
		if len(args) != 2 {
			return usage(op, "ID on|off")
		}
		node, err := e.node(args[0])
		if err != nil {
			return err
		}
		folded, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		return e.ctl.SetFolded(node, folded)

	case opToggle:
		if len(args) == 0 {
			return usage(op, "ID...")
		}
		nodes := make([]*mapmodel.Node, 0, len(args))
		for _, id := range args {
			node, err := e.node(id)
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return e.ctl.ToggleFolded(nodes...)

	case opText:
		if len(args) != 2 {
			return usage(op, "ID TEXT")
		}
		node, err := e.node(args[0])
		if err != nil {
			return err
		}
		return e.ctl.SetNodeText(node, args[1])

	case opUndo, opRedo, opSave:
		if len(args) != 0 {
			return usage(op, "")
		}
		switch op {
		case opUndo:
			return e.ctl.Undo(e.m)
		case opRedo:
			return e.ctl.Redo(e.m)
		default:
			return e.ctl.Save(e.m)
		}

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

// shift moves node one place up or down among its siblings. The first
// sibling moves up to the end and the last moves down to the front.
func (e *editor) shift(node *mapmodel.Node, up bool) error {
	parent := node.Parent()
	if parent == nil {
		return fmt.Errorf("shift %s: %w", node.ID(), controller.ErrRoot)
	}
	index, last := node.Index(), parent.ChildCount()-1

	switch {
	case up && index > 0:
		return e.ctl.MoveNodeBefore(node, parent.ChildAt(index-1), false, false)
	case up:
		return e.ctl.MoveNodeAsChild(node, parent, false, false)
	case index < last:
		return e.ctl.MoveNode(node, parent, index+1, false, false)
	default:
		return e.ctl.MoveNodeBefore(node, parent.ChildAt(0), false, false)
	}
}

// node resolves an ID, or "root" for the root node.
func (e *editor) node(ref string) (*mapmodel.Node, error) {
	if ref == rootRef {
		return e.m.Root(), nil
	}
	if node := e.m.FindNode(ref); node != nil {
		return node, nil
	}
	return nil, fmt.Errorf("no node with ID %q", ref)
}

func usage(op, args string) error {
	return fmt.Errorf("usage: %s %s", op, args)
}

// parseIndex reads a child index. "end" stands for last.
func parseIndex(s string, last int) (int, error) {
	if s == "end" {
		return last, nil
	}
	index, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return index, nil
}

func parseSide(s string) (bool, error) {
	switch s {
	case "left":
		return true, nil
	case "right":
		return false, nil
	}
	return false, fmt.Errorf("invalid side %q (want left or right)", s)
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid fold state %q (want on or off)", s)
}

// splitArgs splits line into words the way a POSIX shell does, without any
// expansion. Quotes and backslashes protect blanks.
func splitArgs(line string) ([]string, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", line, err)
	}
	return args, nil
}

func (c *cli) editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit FILE",
		Short: "Apply edit operations to a map",
		Long: `Apply edit operations to a map and save it.

Operations are read from --script (use - for stdin) and from each --exec
flag, in that order:

  add PARENT INDEX TEXT [left|right]   insert a new node, prints its ID
  sibling ID TEXT                      insert a new node after ID, prints its ID
  before ID TEXT                       insert a new node before ID, prints its ID
  delete ID                            remove a node and its subtree
  move ID PARENT INDEX [left|right]    move a node; a side also moves it
  up ID | down ID                      swap a node with its neighbour
  into ID TARGET                       move a node to the end of TARGET's children
  beside ID TARGET                     move a node before TARGET, on its side
  fold ID on|off                       fold or unfold a node
  toggle ID...                         toggle the fold state
  text ID TEXT                         replace the node text
  undo | redo                          walk the undo history
  save                                 save now

PARENT, ID and TARGET accept "root"; INDEX accepts "end". Words are split
like a shell does: quote arguments containing blanks with '...' or "...",
or escape single characters with a backslash.`,
		Args: exactArgs(1, "FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, _ := cmd.Flags().GetString(FlagScript)
			execs, _ := cmd.Flags().GetStringArray(FlagExec)
			if script == "" && len(execs) == 0 {
				return fmt.Errorf("nothing to do: pass --script or --exec")
			}

			return c.withSession(controller.MindMapMode, func(s *session) error {
				m, err := s.openWritable(args[0])
				if err != nil {
					return err
				}
				defer func() { _, _ = s.ctl.Close(m, true) }()

				ed := &editor{ctl: s.ctl, m: m, out: cmd.OutOrStdout()}
				if script != "" {
					if err := runScript(ed, script, cmd.InOrStdin()); err != nil {
						return err
					}
				}
				for _, line := range execs {
					if err := ed.ExecLine(line); err != nil {
						return fmt.Errorf("%s: %w", line, err)
					}
				}

				if !m.IsSaved() {
					return s.ctl.Save(m)
				}
				return nil
			})
		},
	}

	cmd.Flags().String(FlagScript, "", "Read operations from this file (- for stdin)")
	cmd.Flags().StringArrayP(FlagExec, "e", nil, "Execute a single operation (repeatable)")
	return cmd
}

func runScript(ed *editor, path string, stdin io.Reader) error {
	if path == "-" {
		return ed.Run(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ed.Run(f)
}
