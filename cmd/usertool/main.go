package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"authchat/core"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "usertool",
		Short:         "Operator tasks for the authchat user store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(addCmd(), hashCmd())
	return cmd
}

func addCmd() *cobra.Command {
	var (
		out    string
		length int
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user with a generated password",
		Long: `Create a user in the configured store (MONGO_URI / DATABASE_URL) with a
random password. The password is printed, or written to --out with 0600
permissions when given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := core.Load()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.DatabaseURL) == "" {
				return errors.New("missing MONGO_URI (or DATABASE_URL) in environment variables")
			}

			ctx := context.Background()
			users, closeUsers, err := core.OpenUserRepository(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer closeUsers()

			auth := core.NewRepositoryAuthService(users, cfg.BcryptCost, cfg.StoreTimeout)
			user, password, err := core.CreateUserWithGeneratedPassword(ctx, auth, args[0], length)
			if err != nil {
				return err
			}

			if out != "" {
				if err := core.WritePasswordFile(out, password); err != nil {
					return err
				}
				log.Printf("user created id=%s username=%s; password written to %s", user.ID, user.Username, out)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id=%s username=%s password=%s\n", user.ID, user.Username, password)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the generated password to this file instead of stdout")
	cmd.Flags().IntVarP(&length, "length", "l", 24, "generated password length")
	return cmd
}

func hashCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Read a password from stdin and print its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := core.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", core.DefaultBcryptCost, "bcrypt cost")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
