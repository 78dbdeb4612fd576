package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/codesnap/codesnap/internal/auth"
	"github.com/spf13/cobra"
)

func newHashPasswordCmd() *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for CODESNAP_ADMIN_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			switch {
			case passwordStdin:
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = strings.TrimSpace(string(raw))
			case len(args) == 1:
				password = args[0]
			default:
				return errors.New("password argument or --password-stdin is required")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}
