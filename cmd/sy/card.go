package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/client"
	"github.com/zulandar/switchyard/internal/models"
)

func newCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Card commands",
	}

	cmd.AddCommand(newCardCreateCmd())
	cmd.AddCommand(newCardMoveCmd())
	cmd.AddCommand(newCardEditCmd())
	cmd.AddCommand(newCardDeleteCmd())
	return cmd
}

func newCardCreateCmd() *cobra.Command {
	var (
		r  remote
		in client.CardInput
	)

	cmd := &cobra.Command{
		Use:   "create <list-id> <title>",
		Short: "Append a card to a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.client(true)
			if err != nil {
				return err
			}
			in.ListID, in.Title = args[0], args[1]
			card, err := c.CreateCard(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created card %s (%s) at position %d\n", card.Title, card.ID, card.Position)
			return nil
		},
	}

	r.addFlags(cmd)
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "card description")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "Low, Medium or High (default Medium)")
	cmd.Flags().StringVar(&in.Tag, "tag", "", "card tag")
	cmd.Flags().StringVar(&in.AssigneeID, "assignee", "", "assignee user ID")
	cmd.Flags().StringVar(&in.DueDate, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	return cmd
}

func newCardMoveCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "move <card-id> <list-id> <position>",
		Short: "Move a card to a position in a list",
		Long:  "Moves a card within its list or to any list on a board you are a member of. A position past the end appends.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parsePosition(args[2])
			if err != nil {
				return err
			}
			c, err := r.client(true)
			if err != nil {
				return err
			}
			card, err := c.MoveCard(cmd.Context(), args[0], args[1], to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved card %s to position %d\n", card.Title, card.Position)
			return nil
		},
	}

	r.addFlags(cmd)
	return cmd
}

func newCardEditCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "edit <card-id>",
		Short: "Change card fields",
		Long: `Updates only the fields whose flags are given. Use --assignee unassigned or
--tag none to clear them, and --due "" to clear the due date.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := cardPatchFromFlags(cmd)
			if patch.Empty() {
				return fmt.Errorf("nothing to change: pass at least one field flag")
			}
			c, err := r.client(true)
			if err != nil {
				return err
			}
			card, err := c.UpdateCard(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated card %s\n", card.Title)
			return nil
		},
	}

	r.addFlags(cmd)
	cmd.Flags().String("title", "", "card title")
	cmd.Flags().StringP("description", "d", "", "card description")
	cmd.Flags().String("priority", "", "Low, Medium or High")
	cmd.Flags().String("tag", "", "card tag, or none")
	cmd.Flags().String("assignee", "", "assignee user ID, or unassigned")
	cmd.Flags().String("due", "", "due date (YYYY-MM-DD or RFC 3339), or empty to clear")
	return cmd
}

// cardPatchFromFlags includes only flags the user set.
func cardPatchFromFlags(cmd *cobra.Command) models.CardPatch {
	field := func(name string) models.Field[string] {
		if !cmd.Flags().Changed(name) {
			return models.Field[string]{}
		}
		v, _ := cmd.Flags().GetString(name)
		return models.SetField(v)
	}
	return models.CardPatch{
		Title:       field("title"),
		Description: field("description"),
		Priority:    field("priority"),
		Tag:         field("tag"),
		AssigneeID:  field("assignee"),
		DueDate:     field("due"),
	}
}

func newCardDeleteCmd() *cobra.Command {
	var r remote

	cmd := &cobra.Command{
		Use:   "delete <card-id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.client(true)
			if err != nil {
				return err
			}
			if err := c.DeleteCard(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted card %s\n", args[0])
			return nil
		},
	}

	r.addFlags(cmd)
	return cmd
}
