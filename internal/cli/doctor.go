package cli

import (
	"context"
	"errors"

	"kanban-cli/internal/model"

	"github.com/spf13/cobra"
)

var errDoctorIssuesFound = errors.New("doctor found invalid boards")

type boardCheck struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Version int64  `json:"version" yaml:"version"`
	Lists   int    `json:"lists" yaml:"lists"`
	Tasks   int    `json:"tasks" yaml:"tasks"`
	Issue   string `json:"issue,omitempty" yaml:"issue,omitempty"`
}

func newDoctorCmd(app *App) *cobra.Command {
	var fail bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Fetch every board and check it is a valid authoritative board",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), app.cfg.SubmitTimeout)
			defer cancel()

			summaries, err := c.ListBoards(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}

			checks := make([]boardCheck, 0, len(summaries))
			issues := 0
			for _, s := range summaries {
				check := boardCheck{ID: s.ID, Name: s.Name}
				b, err := c.FetchBoard(ctx, s.ID)
				if err == nil {
					err = model.Validate(b)
					check.Version = b.Version
					check.Lists = len(b.Lists)
					check.Tasks = b.TaskCount()
				}
				if err != nil {
					check.Issue = err.Error()
					issues++
				}
				checks = append(checks, check)
			}

			if err := writeOut(cmd, app, map[string]any{
				"data": checks,
				"meta": map[string]any{
					"boards":    len(checks),
					"issues":    issues,
					"hasErrors": issues > 0,
				},
			}); err != nil {
				return err
			}

			if fail && issues > 0 {
				return writeErr(cmd, errDoctorIssuesFound)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if any board is invalid")
	return cmd
}
