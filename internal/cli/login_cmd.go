package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the storefront and store the credential locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			reader := bufio.NewReader(os.Stdin)
			if username == "" {
				fmt.Print("Username: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				username = strings.TrimSpace(line)
			}
			if password == "" {
				fmt.Print("Password: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				password = strings.TrimSpace(line)
			}

			principal, err := rt.api.Login(context.Background(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			// A new principal invalidates any previous user's pointers.
			if err := rt.points.Clear(); err != nil {
				return err
			}
			if err := rt.points.SetPrincipal(principal); err != nil {
				return err
			}

			fmt.Printf("Logged in as %s (%s)\n", principal.Username, principal.ChatUserID())
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "account username (prompted when omitted)")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential and session pointers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.points.Clear(); err != nil {
				return err
			}
			if err := rt.points.ClearPrincipal(); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}
