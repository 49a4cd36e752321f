package cli

import (
	"context"
	"fmt"

	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage conversation history",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryClearCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List previous conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := rt.ids.Resolve()
			if err != nil {
				return err
			}

			hist, err := rt.api.UserHistory(context.Background(), id.UserID)
			if err != nil {
				return err
			}
			if hist.UserID != "" && hist.UserID != id.UserID {
				return fmt.Errorf("server answered for %q, expected %q", hist.UserID, id.UserID)
			}

			if len(hist.Sessions) == 0 {
				fmt.Println("No previous conversations.")
				return nil
			}
			for i, s := range hist.Sessions {
				fmt.Printf("%d. %s (%d messages)\n   %s\n", i+1, s.Title(), s.MessageCount, s.SessionID)
			}
			return nil
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print one conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := rt.ids.Resolve()
			if err != nil {
				return err
			}

			// An unbound session id is discarded, never loaded.
			if !domain.SessionBoundTo(args[0], id.UserID) {
				return fmt.Errorf("session %q is not bound to %q", args[0], id.UserID)
			}

			msgs, err := rt.api.SessionHistory(context.Background(), id.UserID, args[0])
			if err != nil {
				return err
			}
			for _, m := range msgs {
				if m.UserID != "" && m.UserID != id.UserID {
					return fmt.Errorf("history contains messages for %q, expected %q", m.UserID, id.UserID)
				}
			}

			for _, m := range msgs {
				printMessage(m)
			}
			return nil
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all conversation history and local session pointers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := rt.ids.Resolve()
			if err != nil {
				return err
			}

			if err := rt.api.ClearHistory(context.Background(), id.UserID); err != nil {
				return err
			}
			if err := rt.ids.Wipe(); err != nil {
				return err
			}
			fmt.Println("History cleared.")
			return nil
		},
	}
}
