package cli

import (
	"kanban-cli/internal/model"
	"kanban-cli/internal/mutate"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task commands",
		Long:  "Tasks are addressed by id or by name (case-insensitive, must be unique on the board).",
	}
	cmd.AddCommand(newTasksAddCmd(app))
	cmd.AddCommand(newTasksRenameCmd(app))
	cmd.AddCommand(newTasksRemoveCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksDoneCmd(app))
	return cmd
}

func newTasksAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <board-id> <list> [name]",
		Short: "Append a task to a list (waits for the authority before it shows)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := joinArgs(args[2:])
			return runMutation(cmd, app, args[0], func(b model.Board) (mutate.Intent, error) {
				l, _, err := resolveList(b, args[1])
				if err != nil {
					return nil, err
				}
				return mutate.AddTask{ListID: l.ID, Name: name}, nil
			})
		},
	}
}

func newTasksRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <board-id> <task> <name>",
		Short: "Rename a task",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := joinArgs(args[2:])
			return runMutation(cmd, app, args[0], func(b model.Board) (mutate.Intent, error) {
				t, err := resolveTask(b, args[1])
				if err != nil {
					return nil, err
				}
				return mutate.RenameTask{ListID: t.listID, TaskID: t.task.ID, Name: name}, nil
			})
		},
	}
}

func newTasksRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <board-id> <task>",
		Aliases: []string{"remove"},
		Short:   "Remove a task",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, app, args[0], func(b model.Board) (mutate.Intent, error) {
				t, err := resolveTask(b, args[1])
				if err != nil {
					return nil, err
				}
				return mutate.RemoveTask{ListID: t.listID, TaskID: t.task.ID}, nil
			})
		},
	}
}

func newTasksMoveCmd(app *App) *cobra.Command {
	var toList string
	var index int

	cmd := &cobra.Command{
		Use:   "move <board-id> <task>",
		Short: "Move a task within its list or to another list",
		Example: `  kanban tasks move <board-id> "Milk" --index 0
  kanban tasks move <board-id> "Milk" --to-list Done`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, app, args[0], func(b model.Board) (mutate.Intent, error) {
				t, err := resolveTask(b, args[1])
				if err != nil {
					return nil, err
				}
				dst := b.Lists[t.listIdx]
				if toList != "" {
					if dst, _, err = resolveList(b, toList); err != nil {
						return nil, err
					}
				}
				to := index
				if to < 0 {
					// End of the destination list.
					to = len(dst.Tasks)
					if dst.ID == t.listID {
						to--
					}
				}
				return mutate.FromDrag(b, mutate.DragResult{
					Type:        mutate.DragTask,
					DraggableID: t.task.ID,
					Source:      mutate.Location{DroppableID: t.listID, Index: t.taskIdx},
					Destination: &mutate.Location{DroppableID: dst.ID, Index: to},
				})
			})
		},
	}

	cmd.Flags().StringVar(&toList, "to-list", "", "Destination list (id or name; default: the task's list)")
	cmd.Flags().IntVar(&index, "index", -1, "0-based destination position (default: end of list)")
	return cmd
}

func newTasksDoneCmd(app *App) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <board-id> <task>",
		Short: "Mark a task done (or not done with --undo)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, app, args[0], func(b model.Board) (mutate.Intent, error) {
				t, err := resolveTask(b, args[1])
				if err != nil {
					return nil, err
				}
				return mutate.SetTaskDone{ListID: t.listID, TaskID: t.task.ID, Done: !undo}, nil
			})
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "Mark the task not done")
	return cmd
}
