package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List commands",
	}

	cmd.AddCommand(newListCreateCmd())
	cmd.AddCommand(newListMoveCmd())
	cmd.AddCommand(newListWIPCmd())
	cmd.AddCommand(newListDeleteCmd())
	return cmd
}

func newListCreateCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "create <board-id> <name>",
		Short: "Append a list to a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.client(true)
			if err != nil {
				return err
			}
			l, err := c.CreateList(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created list %s (%s) at position %d\n", l.Name, l.ID, l.Position)
			return nil
		},
	}

	r.addFlags(cmd)
	return cmd
}

func newListMoveCmd() *cobra.Command {
	var (
		r       remote
		boardID string
	)

	cmd := &cobra.Command{
		Use:   "move <list-id> <position>",
		Short: "Move a list to a new position",
		Long:  "Moves a list within its board, or to another board you are a member of with --board.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parsePosition(args[1])
			if err != nil {
				return err
			}
			c, err := r.client(true)
			if err != nil {
				return err
			}
			l, err := c.MoveList(cmd.Context(), args[0], boardID, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved list %s to position %d\n", l.Name, l.Position)
			return nil
		},
	}

	r.addFlags(cmd)
	cmd.Flags().StringVar(&boardID, "board", "", "target board (default: the list's board)")
	return cmd
}

func newListWIPCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "wip <list-id> <limit|none>",
		Short: "Set or clear a list's WIP limit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var limit *int
			if args[1] != "none" {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("limit must be a positive integer or \"none\", got %q", args[1])
				}
				limit = &n
			}
			c, err := r.client(true)
			if err != nil {
				return err
			}
			l, err := c.SetWIPLimit(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if l.WIPLimit == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared WIP limit on %s\n", l.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Set WIP limit on %s to %d\n", l.Name, *l.WIPLimit)
			}
			return nil
		},
	}

	r.addFlags(cmd)
	return cmd
}

func newListDeleteCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "delete <list-id>",
		Short: "Delete a list and its cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.client(true)
			if err != nil {
				return err
			}
			if err := c.DeleteList(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted list %s\n", args[0])
			return nil
		},
	}

	r.addFlags(cmd)
	return cmd
}

func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("position must be a non-negative integer, got %q", s)
	}
	return n, nil
}
