package cli

import (
	"errors"
	"strings"

	"kanban-cli/internal/model"
	"kanban-cli/internal/mutate"
	"kanban-cli/internal/publish"

	"github.com/spf13/cobra"
)

func newBoardsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boards",
		Short: "Board index commands",
	}
	cmd.AddCommand(newBoardsListCmd(app))
	cmd.AddCommand(newBoardsCreateCmd(app))
	return cmd
}

func newBoardsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List boards",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			boards, err := c.ListBoards(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": boards})
		},
	}
}

func newBoardsCreateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty board",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := c.CreateBoard(cmd.Context(), joinArgs(args))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": b})
		},
	}
}

func newBoardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Single board commands",
	}
	cmd.AddCommand(newBoardShowCmd(app))
	cmd.AddCommand(newBoardExportCmd(app))
	cmd.AddCommand(newBoardRenameCmd(app))
	return cmd
}

func newBoardShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <board-id>",
		Short: "Show a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := c.FetchBoard(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": b})
		},
	}
}

func newBoardExportCmd(app *App) *cobra.Command {
	var toDir string
	var render bool
	var overwrite bool
	var meta bool
	var width int

	cmd := &cobra.Command{
		Use:   "export <board-id>",
		Short: "Export a board as Markdown (stdout, or a file with --to)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := c.FetchBoard(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}

			if strings.TrimSpace(toDir) != "" {
				if render {
					return writeErr(cmd, errors.New("--render only applies to stdout output"))
				}
				res, err := publish.WriteBoard(b, toDir, publish.WriteOptions{
					Overwrite:   overwrite,
					IncludeMeta: meta,
				})
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"data": res})
			}

			md := publish.RenderBoardMarkdown(b, publish.RenderOptions{IncludeMeta: meta})
			if render {
				md = publish.RenderTerminal(md, app.cfg.TUI.MarkdownStyle, width)
			}
			_, err = cmd.OutOrStdout().Write([]byte(md))
			return err
		},
	}

	cmd.Flags().StringVar(&toDir, "to", "", "Output directory (writes <dir>/boards/<board-id>.md)")
	cmd.Flags().BoolVar(&render, "render", false, "Render Markdown for the terminal")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&meta, "meta", false, "Include board id and version")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for --render")
	return cmd
}

func newBoardRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <board-id> <name>",
		Short: "Rename a board",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := joinArgs(args[1:])
			return runMutation(cmd, app, args[0], func(b model.Board) (mutate.Intent, error) {
				return mutate.RenameBoard{Name: name}, nil
			})
		},
	}
}
