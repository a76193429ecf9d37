package main

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/npratt/mapedit/internal/controller"
)

// System clipboard access, replaced in tests.
var (
	clipboardRead  = clipboard.ReadAll
	clipboardWrite = clipboard.WriteAll
)

func (c *cli) copyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy FILE ID",
		Short: "Copy a subtree to the clipboard",
		Args:  exactArgs(2, "FILE ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(controller.BrowseMode, func(s *session) error {
				m, err := s.open(args[0])
				if err != nil {
					return err
				}
				defer func() { _, _ = s.ctl.Close(m, true) }()

				ed := &editor{ctl: s.ctl, m: m}
				node, err := ed.node(args[1])
				if err != nil {
					return err
				}
				fragment, err := s.ctl.CopyNode(node)
				if err != nil {
					return err
				}
				if err := clipboardWrite(fragment); err != nil {
					return fmt.Errorf("write clipboard: %w", err)
				}
				s.logger.Debug("copied subtree", "id", node.ID(), "bytes", len(fragment))
				return nil
			})
		},
	}
}

func (c *cli) pasteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paste FILE PARENT",
		Short: "Paste the clipboard below a node and save",
		Args:  exactArgs(2, "FILE PARENT"),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment, err := clipboardRead()
			if err != nil {
				return fmt.Errorf("read clipboard: %w", err)
			}
			if strings.TrimSpace(fragment) == "" {
				return fmt.Errorf("clipboard is empty")
			}

			return c.withSession(controller.MindMapMode, func(s *session) error {
				m, err := s.openWritable(args[0])
				if err != nil {
					return err
				}
				defer func() { _, _ = s.ctl.Close(m, true) }()

				ed := &editor{ctl: s.ctl, m: m}
				parent, err := ed.node(args[1])
				if err != nil {
					return err
				}
				node, err := s.ctl.PasteNode(parent, fragment)
				if err != nil {
					return err
				}
				if err := s.ctl.Save(m); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), node.ID())
				return err
			})
		},
	}
}
