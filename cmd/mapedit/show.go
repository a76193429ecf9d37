package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/npratt/mapedit/internal/controller"
	"github.com/npratt/mapedit/internal/mapmodel"
)

var (
	rootStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	sideStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	foldedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	idStyle     = lipgloss.NewStyle().Faint(true)
)

// outlineOptions controls renderOutline.
type outlineOptions struct {
	IDs bool // append node IDs
	All bool // descend into folded nodes
}

// renderOutline prints the tree indented by depth. Children of the root are
// marked with their side; folded nodes show how many children they hide.
func renderOutline(m *mapmodel.Map, opts outlineOptions) string {
	var sb strings.Builder
	m.Root().Walk(func(n *mapmodel.Node, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		if depth == 0 {
			sb.WriteString(rootStyle.Render(n.Text()))
		} else {
			marker := ">"
			if n.IsLeft() {
				marker = "<"
			}
			sb.WriteString(sideStyle.Render(marker) + " " + n.Text())
		}
		if n.IsFolded() && n.HasChildren() {
			sb.WriteString(" " + foldedStyle.Render(fmt.Sprintf("[+%d]", n.ChildCount())))
		}
		if opts.IDs {
			sb.WriteString(" " + idStyle.Render("("+n.ID()+")"))
		}
		sb.WriteString("\n")
		return opts.All || !n.IsFolded()
	})
	return sb.String()
}

// outlineNode is the JSON form of a node.
type outlineNode struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Side     string         `json:"side,omitempty"`
	Folded   bool           `json:"folded,omitempty"`
	Children []*outlineNode `json:"children,omitempty"`
}

func toOutlineNode(n *mapmodel.Node) *outlineNode {
	out := &outlineNode{ID: n.ID(), Text: n.Text(), Folded: n.IsFolded()}
	if !n.IsRoot() {
		out.Side = "right"
		if n.IsLeft() {
			out.Side = "left"
		}
	}
	for _, child := range n.Children() {
		out.Children = append(out.Children, toOutlineNode(child))
	}
	return out
}

func (c *cli) showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Print a map as an outline",
		Long: `Print a map as an indented outline. The map is opened for browsing,
so no lock is taken and the file is never modified.`,
		Args: exactArgs(1, "FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, _ := cmd.Flags().GetBool(FlagIDs)
			all, _ := cmd.Flags().GetBool(FlagAll)
			asJSON, _ := cmd.Flags().GetBool(FlagJSON)

			return c.withSession(controller.BrowseMode, func(s *session) error {
				m, err := s.open(args[0])
				if err != nil {
					return err
				}
				defer func() { _, _ = s.ctl.Close(m, true) }()

				if asJSON {
					data, err := json.MarshalIndent(toOutlineNode(m.Root()), "", "  ")
					if err != nil {
						return fmt.Errorf("marshal map: %w", err)
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}

				_, err = fmt.Fprint(cmd.OutOrStdout(), renderOutline(m, outlineOptions{IDs: ids, All: all}))
				return err
			})
		},
	}

	cmd.Flags().Bool(FlagIDs, false, "Show node IDs")
	cmd.Flags().Bool(FlagAll, false, "Show the children of folded nodes")
	cmd.Flags().Bool(FlagJSON, false, "Output the tree as JSON")
	return cmd
}
