package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newBoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Board commands",
	}

	cmd.AddCommand(newBoardListCmd())
	cmd.AddCommand(newBoardShowCmd())
	cmd.AddCommand(newBoardCreateCmd())
	cmd.AddCommand(newBoardDeleteCmd())
	cmd.AddCommand(newBoardAddMemberCmd())
	return cmd
}

func newBoardListCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List boards you are a member of",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.client(true)
			if err != nil {
				return err
			}
			boards, err := c.Boards(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(boards) == 0 {
				fmt.Fprintln(out, "No boards.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUPDATED")
			for _, b := range boards {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.ID, b.Name, formatAge(time.Since(b.UpdatedAt)))
			}
			return tw.Flush()
		},
	}

	r.addFlags(cmd)
	return cmd
}

func newBoardShowCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "show <board-id>",
		Short: "Show a board's lists and cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.client(true)
			if err != nil {
				return err
			}
			d, err := c.Board(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), d)
			return nil
		},
	}

	r.addFlags(cmd)
	return cmd
}

func newBoardCreateCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a board with the default lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.client(true)
			if err != nil {
				return err
			}
			b, err := c.CreateBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created board %s (%s)\n", b.Name, b.ID)
			return nil
		},
	}

	r.addFlags(cmd)
	return cmd
}

func newBoardDeleteCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "delete <board-id>",
		Short: "Delete a board you own, with all its lists and cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.client(true)
			if err != nil {
				return err
			}
			if err := c.DeleteBoard(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted board %s\n", args[0])
			return nil
		},
	}

	r.addFlags(cmd)
	return cmd
}

func newBoardAddMemberCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "add-member <board-id> <email>",
		Short: "Give another user access to a board you own",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.client(true)
			if err != nil {
				return err
			}
			d, err := c.AddMember(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s (%d members)\n", args[1], d.Name, len(d.Members))
			return nil
		},
	}

	r.addFlags(cmd)
	return cmd
}
