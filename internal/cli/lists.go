package cli

import (
	"fmt"
	"strconv"

	"kanban-cli/internal/model"
	"kanban-cli/internal/mutate"

	"github.com/spf13/cobra"
)

func newListsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "List (column) commands",
		Long:  "Lists are addressed by id or by name (case-insensitive, must be unique on the board).",
	}
	cmd.AddCommand(newListsAddCmd(app))
	cmd.AddCommand(newListsRenameCmd(app))
	cmd.AddCommand(newListsRemoveCmd(app))
	cmd.AddCommand(newListsMoveCmd(app))
	return cmd
}

func newListsAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <board-id> [name]",
		Short: "Append a list (waits for the authority before it shows)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := joinArgs(args[1:])
			return runMutation(cmd, app, args[0], func(model.Board) (mutate.Intent, error) {
				return mutate.AddList{Name: name}, nil
			})
		},
	}
}

func newListsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <board-id> <list> <name>",
		Short: "Rename a list",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := joinArgs(args[2:])
			return runMutation(cmd, app, args[0], func(b model.Board) (mutate.Intent, error) {
				l, _, err := resolveList(b, args[1])
				if err != nil {
					return nil, err
				}
				return mutate.RenameList{ListID: l.ID, Name: name}, nil
			})
		},
	}
}

func newListsRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <board-id> <list>",
		Aliases: []string{"remove"},
		Short:   "Remove a list and its tasks",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, app, args[0], func(b model.Board) (mutate.Intent, error) {
				l, _, err := resolveList(b, args[1])
				if err != nil {
					return nil, err
				}
				return mutate.RemoveList{ListID: l.ID}, nil
			})
		},
	}
}

func newListsMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <board-id> <list> <index>",
		Short: "Move a list to a 0-based position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := strconv.Atoi(args[2])
			if err != nil || to < 0 {
				return writeErr(cmd, fmt.Errorf("invalid index %q", args[2]))
			}
			return runMutation(cmd, app, args[0], func(b model.Board) (mutate.Intent, error) {
				l, idx, err := resolveList(b, args[1])
				if err != nil {
					return nil, err
				}
				return mutate.FromDrag(b, mutate.DragResult{
					Type:        mutate.DragList,
					DraggableID: l.ID,
					Source:      mutate.Location{DroppableID: mutate.BoardDroppableID, Index: idx},
					Destination: &mutate.Location{DroppableID: mutate.BoardDroppableID, Index: to},
				})
			})
		},
	}
}
