package publish

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"kanban-cli/internal/model"
)

type RenderOptions struct {
	// IncludeMeta adds a Meta section with ids, version and creation time.
	IncludeMeta bool
}

// RenderBoardMarkdown renders a board as a markdown document: one section per list and
// a task list item per task.
func RenderBoardMarkdown(b model.Board, opt RenderOptions) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	name := strings.TrimSpace(b.Name)
	if name == "" {
		name = "(untitled board)"
	}
	writeLn("# " + name)
	writeLn("")

	if opt.IncludeMeta {
		writeLn("## Meta")
		writeLn("")
		writeLn("- ID: " + b.ID)
		writeLn(fmt.Sprintf("- Version: %d", b.Version))
		if b.CreatedAt != nil {
			writeLn("- Created: " + b.CreatedAt.UTC().Format(time.RFC3339))
		}
		writeLn(fmt.Sprintf("- Lists: %d, tasks: %d", len(b.Lists), b.TaskCount()))
		writeLn("")
	}

	if len(b.Lists) == 0 {
		writeLn("_No lists._")
		return buf.String()
	}
	for _, l := range b.Lists {
		done := 0
		for _, t := range l.Tasks {
			if t.Done {
				done++
			}
		}
		writeLn(fmt.Sprintf("## %s (%d/%d)", escape(l.Name), done, len(l.Tasks)))
		writeLn("")
		if len(l.Tasks) == 0 {
			writeLn("_Empty._")
			writeLn("")
			continue
		}
		for _, t := range l.Tasks {
			box := "[ ]"
			if t.Done {
				box = "[x]"
			}
			writeLn("- " + box + " " + escape(t.Name))
		}
		writeLn("")
	}
	return strings.TrimRight(buf.String(), "\n") + "\n"
}

// escape keeps user text from turning into markdown structure.
func escape(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if s == "" {
		return "(untitled)"
	}
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}
