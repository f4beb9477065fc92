package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danhigham/tgterm/internal/accounts"
	"github.com/danhigham/tgterm/internal/config"
	"github.com/danhigham/tgterm/internal/domain"
)

func accountsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "View and manage saved accounts",
	}
	cmd.AddCommand(accountsListCmd(opts))
	cmd.AddCommand(accountsRemoveCmd(opts))
	return cmd
}

func openAccounts(opts *rootOptions) (*accounts.Store, error) {
	return accounts.NewStore(config.AccountsDir(opts.dataDir), zap.NewNop())
}

func accountsListCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAccounts(opts)
			if err != nil {
				return err
			}
			accts, err := store.List()
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), accts, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func accountsRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Forget an account and delete its session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid account id %q", args[0])
			}
			store, err := openAccounts(opts)
			if err != nil {
				return err
			}
			acc, err := store.Get(id)
			if err != nil {
				return err
			}
			if err := store.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed account: %s (%d)\n", acc.Label(), acc.ID)
			return nil
		},
	}
}

type accountInfo struct {
	ID       int64  `json:"id"`
	Phone    string `json:"phone"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Active   bool   `json:"active"`
}

func printAccounts(w io.Writer, accts []domain.Account, jsonOutput bool) error {
	if jsonOutput {
		infos := make([]accountInfo, 0, len(accts))
		for _, a := range accts {
			infos = append(infos, accountInfo{ID: a.ID, Phone: a.Phone, Username: a.Username, Name: a.DisplayName, Active: a.Active})
		}
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if len(accts) == 0 {
		fmt.Fprintln(w, "No saved accounts.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tPHONE\tACTIVE\n")
	for _, a := range accts {
		active := ""
		if a.Active {
			active = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", a.ID, a.Label(), a.Phone, active)
	}
	return tw.Flush()
}
