package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/sonlife/sonlife-giving/internal/auth"

	"github.com/spf13/cobra"
)

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Staff account helpers",
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for a staff password read from stdin",
	Long:  `Reads one line from stdin and prints the hash to paste into staff[].password_hash or STAFF_ACCOUNTS.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return errors.New("empty password")
		}

		hash, err := auth.HashPassword(password, hashCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var hashCost int

func init() {
	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", 12, "bcrypt cost")

	staffCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(staffCmd)
}
