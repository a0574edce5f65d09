package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"kanban-cli/internal/authority"
	"kanban-cli/internal/model"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Mutation *mutationView   `json:"mutation"`
}

func (e envelope) board(t *testing.T) model.Board {
	t.Helper()
	var b model.Board
	if err := json.Unmarshal(e.Data, &b); err != nil {
		t.Fatalf("decode board: %v\n%s", err, e.Data)
	}
	return b
}

// testEnv is a seeded authority plus an isolated config dir.
type testEnv struct {
	server   string
	shopping string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	t.Setenv("KANBAN_CONFIG_DIR", t.TempDir())

	ctx := context.Background()
	st, err := authority.Open(ctx, filepath.Join(t.TempDir(), "authority.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if _, err := st.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	boards, err := st.List(ctx)
	if err != nil || len(boards) == 0 {
		t.Fatalf("list seeded boards: %v (%d)", err, len(boards))
	}

	srv := httptest.NewServer(authority.NewServer(st, authority.NewHub()).Handler())
	t.Cleanup(srv.Close)
	return testEnv{server: srv.URL + authority.APIPrefix, shopping: boards[0].ID}
}

func (e testEnv) mustRun(t *testing.T, args ...string) envelope {
	t.Helper()
	args = append([]string{"--server", e.server}, args...)
	stdout, stderr, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("command failed: kanban %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, stderr, stdout)
	}
	var env envelope
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, stdout, args)
	}
	if len(env.Data) == 0 {
		t.Fatalf("expected JSON envelope to contain data key; stdout:\n%s", stdout)
	}
	return env
}

func taskNames(l model.TaskList) []string {
	out := make([]string, 0, len(l.Tasks))
	for _, t := range l.Tasks {
		out = append(out, t.Name)
	}
	return out
}

func TestBoardsListAndCreate(t *testing.T) {
	env := newTestEnv(t)

	var boards []model.BoardSummary
	if err := json.Unmarshal(env.mustRun(t, "boards", "list").Data, &boards); err != nil {
		t.Fatalf("decode boards: %v", err)
	}
	if len(boards) != 5 || boards[0].Name != "Shopping" {
		t.Fatalf("unexpected seeded boards: %+v", boards)
	}

	created := env.mustRun(t, "boards", "create", "Road", "trip").board(t)
	if created.Name != "Road trip" || created.Version != 0 || len(created.Lists) != 0 {
		t.Fatalf("unexpected created board: %+v", created)
	}
	shown := env.mustRun(t, "board", "show", created.ID).board(t)
	if shown.ID != created.ID || shown.Name != "Road trip" {
		t.Fatalf("show returned %+v", shown)
	}
}

func TestListsAddWaitsForAuthority(t *testing.T) {
	env := newTestEnv(t)

	res := env.mustRun(t, "lists", "add", env.shopping, "Hardware")
	b := res.board(t)
	if b.Version != 1 || len(b.Lists) != 3 || b.Lists[2].Name != "Hardware" {
		t.Fatalf("expected authority-confirmed list at version 1; got v%d %+v", b.Version, b.Lists)
	}
	m := res.Mutation
	if m == nil || m.Path != "confirmed" || m.State != "confirmed" || m.Version != 1 || !m.Adopted {
		t.Fatalf("unexpected mutation record: %+v", m)
	}
}

func TestTasksLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.shopping

	b := env.mustRun(t, "tasks", "add", id, "grocery LIST", "Bread").board(t)
	if got := taskNames(b.Lists[0]); len(got) != 3 || got[2] != "Bread" {
		t.Fatalf("expected Bread appended to Grocery list; got %v", got)
	}

	b = env.mustRun(t, "tasks", "done", id, "Milk").board(t)
	if !b.Lists[0].Tasks[1].Done {
		t.Fatalf("expected Milk done; got %+v", b.Lists[0].Tasks)
	}

	b = env.mustRun(t, "tasks", "move", id, "Milk", "--to-list", "Click here to rename", "--index", "0").board(t)
	if got := taskNames(b.Lists[0]); len(got) != 2 || got[0] != "4-6 Apples" || got[1] != "Bread" {
		t.Fatalf("source list after move: %v", got)
	}
	if got := b.Lists[1].Tasks; len(got) != 2 || got[0].Name != "Milk" || !got[0].Done {
		t.Fatalf("destination list after move: %+v", got)
	}

	b = env.mustRun(t, "tasks", "move", id, "Bread", "--index", "0").board(t)
	if got := taskNames(b.Lists[0]); got[0] != "Bread" || got[1] != "4-6 Apples" {
		t.Fatalf("reorder within list: %v", got)
	}

	b = env.mustRun(t, "tasks", "rename", id, "Bread", "Rye", "bread").board(t)
	if b.Lists[0].Tasks[0].Name != "Rye bread" {
		t.Fatalf("rename: %+v", b.Lists[0].Tasks)
	}

	res := env.mustRun(t, "tasks", "rm", id, "rye bread")
	b = res.board(t)
	if got := taskNames(b.Lists[0]); len(got) != 1 || got[0] != "4-6 Apples" {
		t.Fatalf("remove: %v", got)
	}
	if res.Mutation == nil || res.Mutation.Kind != "remove_task" {
		t.Fatalf("expected remove_task mutation; got %+v", res.Mutation)
	}
	if b.Version != 6 {
		t.Fatalf("expected six accepted versions; got v%d", b.Version)
	}
}

func TestListsRenameMoveRemove(t *testing.T) {
	env := newTestEnv(t)
	id := env.shopping

	b := env.mustRun(t, "lists", "rename", id, "Click here to rename", "Tips").board(t)
	if b.Lists[1].Name != "Tips" {
		t.Fatalf("rename list: %+v", b.Lists)
	}
	b = env.mustRun(t, "lists", "move", id, "Tips", "0").board(t)
	if b.Lists[0].Name != "Tips" || b.Lists[1].Name != "Grocery list" {
		t.Fatalf("move list: %+v", b.Lists)
	}
	b = env.mustRun(t, "lists", "rm", id, "tips").board(t)
	if len(b.Lists) != 1 || b.Lists[0].Name != "Grocery list" {
		t.Fatalf("remove list: %+v", b.Lists)
	}
	b = env.mustRun(t, "board", "rename", id, "Errands").board(t)
	if b.Name != "Errands" {
		t.Fatalf("rename board: %q", b.Name)
	}
}

func TestNoOpMoveIsNotSubmitted(t *testing.T) {
	env := newTestEnv(t)

	// Milk is already last in its list.
	res := env.mustRun(t, "tasks", "move", env.shopping, "Milk")
	if res.Mutation != nil {
		t.Fatalf("expected no mutation for a no-op move; got %+v", res.Mutation)
	}
	if b := res.board(t); b.Version != 0 {
		t.Fatalf("expected untouched board at version 0; got v%d", b.Version)
	}
}

func TestUnknownListIsReportedOnce(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := runCLI(t, []string{"--server", env.server, "tasks", "add", env.shopping, "Nope", "Bread"})
	if err == nil {
		t.Fatalf("expected error; stdout:\n%s", stdout)
	}
	if !Reported(err) {
		t.Fatalf("expected error to be marked reported: %v", err)
	}
	if got := strings.Count(string(stderr), "list not found: Nope"); got != 1 {
		t.Fatalf("expected the error once on stderr; got %d:\n%s", got, stderr)
	}
	if len(stdout) != 0 {
		t.Fatalf("expected no stdout; got:\n%s", stdout)
	}
}

func TestMissingBoardFailsToLoad(t *testing.T) {
	env := newTestEnv(t)

	_, stderr, err := runCLI(t, []string{"--server", env.server, "lists", "add", "no-such-board", "X"})
	if err == nil {
		t.Fatalf("expected load failure")
	}
	if !strings.Contains(string(stderr), "failed to load board no-such-board") {
		t.Fatalf("unexpected stderr:\n%s", stderr)
	}
}

func TestBoardExport(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := runCLI(t, []string{"--server", env.server, "board", "export", env.shopping})
	if err != nil {
		t.Fatalf("export: %v\n%s", err, stderr)
	}
	md := string(stdout)
	for _, want := range []string{"# Shopping", "## Grocery list (0/2)", "- [ ] Milk"} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in export:\n%s", want, md)
		}
	}

	dir := t.TempDir()
	res := env.mustRun(t, "board", "export", env.shopping, "--to", dir, "--meta")
	var written struct {
		Written []string `json:"written"`
	}
	if err := json.Unmarshal(res.Data, &written); err != nil || len(written.Written) != 1 {
		t.Fatalf("unexpected export result: %s (%v)", res.Data, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "boards", env.shopping+".md"))
	if err != nil {
		t.Fatalf("read exported file: %v", err)
	}
	if !strings.Contains(string(data), "- Version: 0") {
		t.Fatalf("expected meta section:\n%s", data)
	}

	if _, _, err := runCLI(t, []string{"--server", env.server, "board", "export", env.shopping, "--to", dir}); err == nil {
		t.Fatalf("expected refusal to overwrite without --overwrite")
	}
}

func TestYAMLOutput(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := runCLI(t, []string{"--server", env.server, "--format", "yaml", "boards", "list"})
	if err != nil {
		t.Fatalf("boards list: %v\n%s", err, stderr)
	}
	if !strings.Contains(string(stdout), "name: Shopping") {
		t.Fatalf("expected yaml output; got:\n%s", stdout)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatchPrintsAdoptedVersions(t *testing.T) {
	env := newTestEnv(t)

	out := &syncBuffer{}
	cmd := NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--server", env.server, "watch", env.shopping, "--count", "2"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	waitFor(t, "initial version", func() bool { return strings.Contains(out.String(), `"version":0`) })
	env.mustRun(t, "board", "rename", env.shopping, "Errands")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not exit after two versions; output:\n%s", out.String())
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two versions; got:\n%s", out.String())
	}
	var second envelope
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode second version: %v", err)
	}
	if b := second.board(t); b.Version != 1 || b.Name != "Errands" {
		t.Fatalf("unexpected second version: %+v", b)
	}
}

// A burst of writes may be printed coalesced, but always in increasing order and
// always ending at the latest version.
func TestWatchEndsAtLatestVersionAfterBurst(t *testing.T) {
	env := newTestEnv(t)

	out := &syncBuffer{}
	cmd := NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--server", env.server, "watch", env.shopping})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	waitFor(t, "initial version", func() bool { return strings.Contains(out.String(), `"version":0`) })
	for _, name := range []string{"One", "Two", "Three"} {
		env.mustRun(t, "board", "rename", env.shopping, name)
	}
	waitFor(t, "latest version", func() bool { return strings.Contains(out.String(), `"version":3`) })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	last := int64(-1)
	for _, line := range lines {
		var doc envelope
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		b := doc.board(t)
		if b.Version <= last {
			t.Fatalf("versions out of order: %d after %d\n%s", b.Version, last, out.String())
		}
		last = b.Version
	}
	var final envelope
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &final); err != nil {
		t.Fatal(err)
	}
	if b := final.board(t); b.Version != 3 || b.Name != "Three" {
		t.Fatalf("expected to end at v3 Three; got %+v", b)
	}

	help := newWatchCmd(&App{}).Long
	if !strings.Contains(help, "coalesced") {
		t.Fatalf("watch help should say versions may be coalesced:\n%s", help)
	}
}

func TestServeRunsUntilCancelled(t *testing.T) {
	t.Setenv("KANBAN_CONFIG_DIR", t.TempDir())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"serve", "--addr", addr, "--db", filepath.Join(t.TempDir(), "serve.sqlite")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	waitFor(t, "healthz", func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	env := testEnv{server: "http://" + addr + authority.APIPrefix}
	var boards []model.BoardSummary
	if err := json.Unmarshal(env.mustRun(t, "boards", "list").Data, &boards); err != nil || len(boards) != 5 {
		t.Fatalf("expected seeded boards from serve; got %v (%v)", boards, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}

func TestResolveByIDOrUniqueName(t *testing.T) {
	b := model.Board{ID: "b", Lists: []model.TaskList{
		{ID: "l1", Name: "Todo", Tasks: []model.Task{{ID: "t1", Name: "Same"}}},
		{ID: "l2", Name: "todo", Tasks: []model.Task{{ID: "t2", Name: "same"}, {ID: "t3", Name: "Other"}}},
	}}

	if l, idx, err := resolveList(b, "l2"); err != nil || l.ID != "l2" || idx != 1 {
		t.Fatalf("resolve by id: %+v %d %v", l, idx, err)
	}
	_, _, err := resolveList(b, "TODO")
	var amb ambiguousError
	if !errors.As(err, &amb) || len(amb.ids) != 2 {
		t.Fatalf("expected ambiguous list; got %v", err)
	}

	ref, err := resolveTask(b, " other ")
	if err != nil || ref.task.ID != "t3" || ref.listID != "l2" || ref.taskIdx != 1 {
		t.Fatalf("resolve task by name: %+v %v", ref, err)
	}
	if _, err := resolveTask(b, "same"); !errors.As(err, &amb) {
		t.Fatalf("expected ambiguous task; got %v", err)
	}
	var nf notFoundError
	if _, err := resolveTask(b, "missing"); !errors.As(err, &nf) || nf.kind != "task" {
		t.Fatalf("expected task not found; got %v", err)
	}
}

func TestDoctorChecksEveryBoard(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := runCLI(t, []string{"--server", env.server, "doctor", "--fail"})
	if err != nil {
		t.Fatalf("doctor failed: %v\nstderr:\n%s", err, stderr)
	}
	var out struct {
		Data []boardCheck   `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(stdout, &out); err != nil {
		t.Fatalf("decode doctor output: %v\n%s", err, stdout)
	}
	if len(out.Data) != 5 {
		t.Fatalf("expected 5 checked boards; got %d", len(out.Data))
	}
	for _, c := range out.Data {
		if c.Issue != "" {
			t.Fatalf("seeded board %s reported invalid: %s", c.Name, c.Issue)
		}
	}
	if out.Meta["hasErrors"] != false {
		t.Fatalf("expected hasErrors=false; got %v", out.Meta)
	}
}

func TestWatchServesEngineMetrics(t *testing.T) {
	env := newTestEnv(t)

	free, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := free.Addr().String()
	_ = free.Close()

	out := &syncBuffer{}
	cmd := NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--server", env.server, "watch", env.shopping, "--metrics-addr", addr})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	waitFor(t, "initial version", func() bool { return strings.Contains(out.String(), `"version":0`) })

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		cancel()
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), `kanban_engine_frames_total{result="applied"} 1`) {
		t.Fatalf("expected applied frame counter; got:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not stop on cancel")
	}
}
