package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/spf13/cobra"
)

var hashCost int

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Long: `Read a password from stdin and print its bcrypt hash. PASSWORD_PEPPER is applied
when set, so the server must run with the same pepper.`,
	Args: cobra.NoArgs,
	RunE: runHashPassword,
}

func init() {
	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", 0, "bcrypt cost 10-14 (defaults to BCRYPT_COST env var)")
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("cost") {
		cfg.BcryptCost = hashCost
	}
	passwords, err := config.NewPasswordConfig(cfg)
	if err != nil {
		return err
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return errors.New("no password on stdin")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password is empty")
	}

	hash, err := passwords.HashPassword(password)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
