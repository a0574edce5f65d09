package cli

import (
	"errors"
	"fmt"
	"strings"

	"kanban-cli/internal/config"
	"kanban-cli/internal/format"
	"kanban-cli/internal/logging"
	"kanban-cli/internal/transport"
	"kanban-cli/internal/tui"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type App struct {
	Server     string
	Format     string
	PrettyJSON bool
	LogLevel   string

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "kanban",
		Short:         "Kanban boards in the terminal (TUI + scriptable CLI)",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  kanban

  # Scriptable commands
  kanban boards list
  kanban tasks add <board-id> "Grocery list" "Bread"

  # Direct board lookup (shortcut for: kanban board show <board-id>)
  kanban 7f0c3a52-9a43-4c1e-b1c2-2b8f5d7f6a10

  # Run a local authority for development
  kanban serve --addr :8080
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app, "")
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.load(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.Server, "server", "", "Authority base URL (default from config: http://localhost:8080/api/v1)")
	cmd.PersistentFlags().StringVar(&app.Format, "format", "", "Output format (json|yaml)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")

	cmd.AddCommand(newBoardsCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newListsCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

// load resolves configuration (defaults < config file < env < flags) and sets up logging.
func (app *App) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return writeErr(cmd, err)
	}
	if s := strings.TrimSpace(app.Server); s != "" {
		cfg.Server = s
	}
	if s := strings.TrimSpace(app.Format); s != "" {
		cfg.Format = s
	}
	if s := strings.TrimSpace(app.LogLevel); s != "" {
		cfg.Log.Level = s
	}
	if err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	}); err != nil {
		return writeErr(cmd, err)
	}
	app.cfg = cfg
	return nil
}

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [board-id]",
		Short: "Start the interactive TUI, optionally on a board",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID := ""
			if len(args) == 1 {
				boardID = args[0]
			}
			return runTUI(cmd, app, boardID)
		},
	}
}

func runTUI(cmd *cobra.Command, app *App, boardID string) error {
	c, err := newClient(app)
	if err != nil {
		return writeErr(cmd, err)
	}
	// The TUI owns the terminal; logs go to a file for its lifetime.
	restore, err := logging.RedirectToFile(app.cfg.Log.File)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer restore()

	return tui.Run(cmd.Context(), tui.Options{
		Backend:       c,
		BoardID:       boardID,
		SubmitTimeout: app.cfg.SubmitTimeout,
		MarkdownStyle: app.cfg.TUI.MarkdownStyle,
	})
}

func newClient(app *App) (*transport.Client, error) {
	return transport.NewClient(app.cfg.Server, transport.WithLogger(log.WithField("component", "transport")))
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.cfg.Format, app.PrettyJSON)
}

// reportedError marks an error that writeErr already printed.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

// Reported reports whether err was already written to stderr by a command.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

func writeErr(cmd *cobra.Command, err error) error {
	if Reported(err) {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return reportedError{err}
}
