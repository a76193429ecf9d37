package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/npratt/mapedit/internal/controller"
	"github.com/npratt/mapedit/internal/mapio"
)

var version = "dev"

// cli holds the state shared by all commands of one invocation.
type cli struct {
	v        *viper.Viper
	logLevel *slog.LevelVar
	logger   *slog.Logger
}

func newCLI(logOut io.Writer) *cli {
	v := viper.New()
	v.SetEnvPrefix("MAPEDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	logLevel := &slog.LevelVar{}
	logLevel.Set(slog.LevelWarn)

	return &cli{
		v:        v,
		logLevel: logLevel,
		logger:   SetupLoggerWithWriter(logOut, logLevel),
	}
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mapedit",
		Short: "Edit mind maps from the command line",
		Long: `mapedit reads, edits and writes mind maps stored as XML documents.

Every edit goes through an undo history, maps are locked while they are
edited so that other editors open them read-only, and documents written by
older versions are converted on open.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.v.GetBool(FlagVerbose) {
				c.logLevel.Set(slog.LevelDebug)
				c.logger.Debug("verbose logging enabled")
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .mapedit/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Log file path")
	rootCmd.PersistentFlags().String(FlagJournal, "", "Write map events as JSON lines to this file")
	rootCmd.PersistentFlags().String(FlagUser, "", "Name written into lock files")
	rootCmd.PersistentFlags().Bool(FlagNoLock, false, "Do not lock maps")
	rootCmd.PersistentFlags().BoolP(FlagAssumeYes, "y", false, "Answer yes to every question")

	// Bind all flags to viper
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = c.v.BindPFlag(f.Name, f)
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mapedit %s (map format %s)\n", version, mapio.CurrentVersion)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(c.newCmd())
	rootCmd.AddCommand(c.showCmd())
	rootCmd.AddCommand(c.editCmd())
	rootCmd.AddCommand(c.lockCmd())
	rootCmd.AddCommand(c.holdCmd())
	rootCmd.AddCommand(c.migrateCmd())
	rootCmd.AddCommand(c.copyCmd())
	rootCmd.AddCommand(c.pasteCmd())
	rootCmd.AddCommand(c.recentCmd())
	rootCmd.AddCommand(c.configCmd())
	rootCmd.AddCommand(c.prefsCmd())
	return rootCmd
}

func (c *cli) newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new FILE",
		Short: "Create an empty map",
		Args:  exactArgs(1, "FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			rootText, _ := cmd.Flags().GetString(FlagRoot)
			force, _ := cmd.Flags().GetBool(FlagForce)

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --%s to overwrite)", path, FlagForce)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			return c.withSession(controller.MindMapMode, func(s *session) error {
				m := s.ctl.NewModel()
				m.Root().SetText(rootText)
				if err := s.ctl.SaveAs(m, path); err != nil {
					return err
				}
				_, err := s.ctl.Close(m, true)
				return err
			})
		},
	}

	cmd.Flags().String(FlagRoot, "New Mindmap", "Text of the root node")
	cmd.Flags().Bool(FlagForce, false, "Overwrite an existing file")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate FILE",
		Short: "Convert a map written by an older version",
		Long: `Convert a map to the current format with the built-in version
updater and write the result to stdout or --output. Documents that are
already current are copied unchanged.`,
		Args: exactArgs(1, "FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString(FlagOutput)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			converted := data
			start, _ := mapio.ReadStart(bytes.NewReader(data), len(mapio.CurrentSignature()))
			if !mapio.HasKnownSignature(start) {
				var buf bytes.Buffer
				if err := mapio.VersionUpdater().Migrate(bytes.NewReader(data), &buf); err != nil {
					return err
				}
				converted = buf.Bytes()
				c.logger.Info("map converted", "file", args[0])
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(converted)
				return err
			}
			return os.WriteFile(output, converted, 0644)
		},
	}

	cmd.Flags().StringP(FlagOutput, "o", "", "Write the converted map to this file")
	return cmd
}

func (c *cli) recentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently opened maps",
		Args:  exactArgs(0, ""),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(controller.BrowseMode, func(s *session) error {
				files := s.app.Prefs.RecentFiles()
				if len(files) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No recent maps")
					return nil
				}
				for i, f := range files {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, f)
				}
				return nil
			})
		},
	}
}

func (c *cli) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  exactArgs(0, ""),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func main() {
	c := newCLI(os.Stderr)
	if err := c.rootCmd().ExecuteContext(context.Background()); err != nil {
		c.logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
