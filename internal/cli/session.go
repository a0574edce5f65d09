package cli

import (
	"context"
	"strings"
	"time"

	"kanban-cli/internal/model"
	"kanban-cli/internal/mutate"
	"kanban-cli/internal/reconcile"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// mutationView is the JSON shape of a settled mutation record.
type mutationView struct {
	Seq     uint64                  `json:"seq" yaml:"seq"`
	Kind    mutate.Kind             `json:"kind" yaml:"kind"`
	Intent  string                  `json:"intent" yaml:"intent"`
	Path    reconcile.Path          `json:"path" yaml:"path"`
	State   reconcile.MutationState `json:"state" yaml:"state"`
	Version int64                   `json:"version" yaml:"version"`
	Adopted bool                    `json:"adopted" yaml:"adopted"`
	Error   string                  `json:"error,omitempty" yaml:"error,omitempty"`
}

func viewMutation(r reconcile.MutationRecord) mutationView {
	v := mutationView{
		Seq:     r.Seq,
		Kind:    r.Kind,
		Intent:  r.Intent,
		Path:    r.Path,
		State:   r.State,
		Version: r.Version,
		Adopted: r.Adopted,
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

// openBoard starts an engine on boardID and waits for the first board.
func openBoard(ctx context.Context, app *App, boardID string, extra ...reconcile.Option) (*reconcile.Engine, error) {
	c, err := newClient(app)
	if err != nil {
		return nil, err
	}
	opts := append([]reconcile.Option{
		reconcile.WithSubmitTimeout(app.cfg.SubmitTimeout),
		reconcile.WithLogger(log.WithField("component", "reconcile")),
	}, extra...)
	e := reconcile.New(strings.TrimSpace(boardID), c, opts...)
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	readyCtx, cancel := context.WithTimeout(ctx, app.cfg.SubmitTimeout)
	defer cancel()
	if err := e.WaitReady(readyCtx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// buildIntent derives an intent from the loaded board. A nil intent is a no-op.
type buildIntent func(b model.Board) (mutate.Intent, error)

// runMutation loads the board through an engine, dispatches one intent, waits for the
// authority to settle it and prints the resulting board.
func runMutation(cmd *cobra.Command, app *App, boardID string, build buildIntent) error {
	ctx := cmd.Context()
	e, err := openBoard(ctx, app, boardID)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer e.Close()

	in, err := build(e.Snapshot().Board)
	if err != nil {
		return writeErr(cmd, err)
	}
	var seq uint64
	if in != nil {
		seq, err = e.Dispatch(in)
		if err != nil {
			return writeErr(cmd, err)
		}
	}

	flushCtx, cancel := context.WithTimeout(ctx, app.cfg.SubmitTimeout+time.Second)
	defer cancel()
	if err := e.Flush(flushCtx); err != nil {
		return writeErr(cmd, err)
	}

	st := e.Snapshot()
	out := map[string]any{"data": st.Board}
	for _, r := range st.Mutations {
		if r.Seq != seq || seq == 0 {
			continue
		}
		if r.State == reconcile.Failed {
			return writeErr(cmd, &reconcile.SubmissionError{Seq: r.Seq, Intent: r.Intent, Err: r.Err})
		}
		out["mutation"] = viewMutation(r)
	}
	return writeOut(cmd, app, out)
}

// resolveList finds a list by id, then by case-insensitive name.
func resolveList(b model.Board, ref string) (model.TaskList, int, error) {
	ref = strings.TrimSpace(ref)
	if i, ok := b.FindList(ref); ok {
		return b.Lists[i], i, nil
	}
	idx := -1
	var matches []string
	for i, l := range b.Lists {
		if strings.EqualFold(strings.TrimSpace(l.Name), ref) {
			idx = i
			matches = append(matches, l.ID)
		}
	}
	switch len(matches) {
	case 0:
		return model.TaskList{}, -1, errNotFound("list", ref)
	case 1:
		return b.Lists[idx], idx, nil
	default:
		return model.TaskList{}, -1, ambiguousError{kind: "list", ref: ref, ids: matches}
	}
}

type taskRef struct {
	listID  string
	listIdx int
	taskIdx int
	task    model.Task
}

// resolveTask finds a task anywhere on the board by id, then by case-insensitive name.
func resolveTask(b model.Board, ref string) (taskRef, error) {
	ref = strings.TrimSpace(ref)
	if li, ti, ok := b.LocateTask(ref); ok {
		return taskRef{listID: b.Lists[li].ID, listIdx: li, taskIdx: ti, task: b.Lists[li].Tasks[ti]}, nil
	}
	var (
		found   taskRef
		matches []string
	)
	for li, l := range b.Lists {
		for ti, t := range l.Tasks {
			if strings.EqualFold(strings.TrimSpace(t.Name), ref) {
				found = taskRef{listID: l.ID, listIdx: li, taskIdx: ti, task: t}
				matches = append(matches, t.ID)
			}
		}
	}
	switch len(matches) {
	case 0:
		return taskRef{}, errNotFound("task", ref)
	case 1:
		return found, nil
	default:
		return taskRef{}, ambiguousError{kind: "task", ref: ref, ids: matches}
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
