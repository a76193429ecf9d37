package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/npratt/mapedit/internal/controller"
	"github.com/npratt/mapedit/internal/lock"
	"github.com/npratt/mapedit/internal/shutdown"
)

// holdShutdownTimeout bounds releasing the lock after a signal.
const holdShutdownTimeout = 5 * time.Second

// lockStatus is the JSON form of `lock status`.
type lockStatus struct {
	File      string    `json:"file"`
	Semaphore string    `json:"semaphore"`
	Locked    bool      `json:"locked"`
	User      string    `json:"user,omitempty"`
	Host      string    `json:"host,omitempty"`
	PID       int       `json:"pid,omitempty"`
	Refreshed time.Time `json:"refreshed,omitzero"`
	Stale     bool      `json:"stale"`
}

func (c *cli) lockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect and clear map locks",
	}

	statusCmd := &cobra.Command{
		Use:   "status FILE",
		Short: "Show who holds the lock on a map",
		Args:  exactArgs(1, "FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			mgr := lock.New(cfg.Lock.User,
				lock.WithSafetyPeriod(cfg.Lock.SafetyPeriod),
				lock.WithLogger(c.logger),
			)

			rec, stale, err := mgr.Inspect(args[0])
			if err != nil {
				return err
			}
			status := lockStatus{
				File:      args[0],
				Semaphore: lock.SemaphorePath(args[0]),
				Locked:    rec != nil,
				Stale:     stale,
			}
			if rec != nil {
				status.User = rec.DisplayName()
				status.Host = rec.Host
				status.PID = rec.PID
				status.Refreshed = rec.Refreshed
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool(FlagJSON); asJSON {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			if !status.Locked {
				_, _ = fmt.Fprintf(out, "%s is not locked\n", status.File)
				return nil
			}
			_, _ = fmt.Fprintf(out, "%s is locked by %s\n", status.File, status.User)
			if status.Host != "" {
				_, _ = fmt.Fprintf(out, "  Host: %s (pid %d)\n", status.Host, status.PID)
			}
			if !status.Refreshed.IsZero() {
				_, _ = fmt.Fprintf(out, "  Refreshed: %s\n", status.Refreshed.Format(time.RFC3339))
			}
			if status.Stale {
				_, _ = fmt.Fprintln(out, "  The lock is stale and will be removed on the next open.")
			}
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")

	clearCmd := &cobra.Command{
		Use:   "clear FILE",
		Short: "Remove the lock on a map regardless of its holder",
		Args:  exactArgs(1, "FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := lock.Clear(args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Lock on %s cleared\n", args[0])
			return err
		},
	}

	cmd.AddCommand(statusCmd, clearCmd)
	return cmd
}

func (c *cli) holdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hold FILE",
		Short: "Lock a map and keep the lock alive until interrupted",
		Long: `Lock a map and refresh the lock every lock.refresh_interval until
SIGINT or SIGTERM arrives. Other editors open the map read-only meanwhile.
The command fails when the lock is cleared or taken over while held.`,
		Args: exactArgs(1, "FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(controller.MindMapMode, func(s *session) error {
				m, err := s.openWritable(args[0])
				if err != nil {
					return err
				}
				locks := m.LockManager()
				if locks == nil {
					_, _ = s.ctl.Close(m, true)
					return fmt.Errorf("locking is disabled")
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Holding lock on %s (Ctrl+C to release)\n", args[0])
				err = shutdown.RunWithGracefulShutdown(cmd.Context(), s.logger, holdShutdownTimeout,
					func(ctx context.Context) error {
						if err := locks.Keepalive(ctx, s.cfg.Lock.RefreshInterval); err != nil {
							return err
						}
						return ctx.Err()
					},
					func(ctx context.Context) error {
						return locks.Release()
					},
				)
				if _, cerr := s.ctl.Close(m, true); cerr != nil {
					s.logger.Warn("close map", "error", cerr)
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}
