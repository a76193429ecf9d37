package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/npratt/mapedit/internal/controller"
	"github.com/npratt/mapedit/internal/prefs"
)

func (c *cli) prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show and change stored preferences",
		Long: `Show and change the preferences kept between runs.

Keys are written as SECTION.NAME. Answers remembered through "don't ask
again" live in the confirm section and are cleared with reset.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all stored preferences",
		Args:  exactArgs(0, ""),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(controller.BrowseMode, func(s *session) error {
				store := s.app.Prefs
				for _, key := range store.Keys() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, store.Get(key))
				}
				return nil
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print a stored preference",
		Args:  exactArgs(1, "KEY"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(controller.BrowseMode, func(s *session) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), s.app.Prefs.Get(args[0]))
				return err
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a preference",
		Args:  exactArgs(2, "KEY VALUE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(controller.BrowseMode, func(s *session) error {
				s.app.Prefs.Set(args[0], args[1])
				return s.app.Prefs.Save()
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset [QUESTION]",
		Short: "Forget a remembered answer so the question is asked again",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool(FlagAll)
			if all == (len(args) == 1) || len(args) > 1 {
				return fmt.Errorf("usage: %s reset QUESTION | --all", cmd.Root().Name())
			}
			return c.withSession(controller.BrowseMode, func(s *session) error {
				questions := args
				if all {
					questions = rememberedQuestions(s.app.Prefs)
				}
				for _, q := range questions {
					if err := s.app.Prefs.ForgetAnswer(strings.TrimPrefix(q, prefs.SectionConfirm+".")); err != nil {
						return err
					}
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%d answer(s) forgotten\n", len(questions))
				return err
			})
		},
	}
	resetCmd.Flags().Bool(FlagAll, false, "Forget every remembered answer")

	cmd.AddCommand(listCmd, getCmd, setCmd, resetCmd)
	return cmd
}

// rememberedQuestions returns the questions with a stored answer.
func rememberedQuestions(store *prefs.Store) []string {
	var questions []string
	for _, key := range store.Keys() {
		if q, ok := strings.CutPrefix(key, prefs.SectionConfirm+"."); ok {
			questions = append(questions, q)
		}
	}
	return questions
}
