package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jathurchan/locksmith/client"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// title renders a status word for display. A Caser is stateful, so one is made per call.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

func newLockCmd(a *app) *cobra.Command {
	var (
		ttl     time.Duration
		timeout time.Duration
		hold    bool
	)

	cmd := &cobra.Command{
		Use:   "lock <resource>",
		Short: "Acquire a lock on a resource",
		Long: `Acquire a lock on a resource, retrying while it is held elsewhere.

With --hold (the default) the lock is renewed in the background until
lockctl is interrupted, then freed. With --hold=false the lock id is
printed and lockctl exits; the lock lives until its TTL elapses or
"lockctl free <lock-id>" is run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.factory.CreateLock(args[0],
				client.WithTTL(ttl),
				client.WithTimeout(timeout),
				client.WithKeepAlive(hold),
			)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := h.Lock(ctx); err != nil {
				printStatus(cmd, h)
				return err
			}
			id, _ := h.ID()
			fmt.Fprintf(cmd.OutOrStdout(), "Lock ID: %s\n", id)
			printStatus(cmd, h)

			if !hold {
				return nil
			}

			select {
			case <-ctx.Done():
			case <-h.KeepAliveDone():
				printStatus(cmd, h)
				return fmt.Errorf("lock lost: %w", h.Err())
			}

			if err := h.Free(context.WithoutCancel(ctx)); err != nil {
				printStatus(cmd, h)
				return err
			}
			printStatus(cmd, h)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 30*time.Second, "lifetime of the lock without renewal")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "how long to keep retrying")
	cmd.Flags().BoolVar(&hold, "hold", true, "hold and renew the lock until interrupted, then free it")
	return cmd
}

func newFreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "free <lock-id>",
		Short: "Free a lock by its identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.factory.AdoptLock(args[0], client.WithKeepAlive(false))
			if err != nil {
				return err
			}
			err = h.Free(cmd.Context())
			printStatus(cmd, h)
			return err
		},
	}
}

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <resource>",
		Short: "Report whether a resource is currently locked (advisory)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := a.factory.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := "unlocked"
			if found {
				state = "locked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], title(state))
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, h *client.Handle) {
	fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", title(h.Status().String()))
}
