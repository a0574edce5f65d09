package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"kanban-cli/internal/model"
)

type WriteOptions struct {
	Overwrite   bool
	IncludeMeta bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteBoard writes <toDir>/boards/<board-id>.md.
func WriteBoard(b model.Board, toDir string, opt WriteOptions) (WriteResult, error) {
	if strings.TrimSpace(b.ID) == "" {
		return WriteResult{}, errors.New("missing board id")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	outDir := filepath.Join(filepath.Clean(toDir), "boards")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return WriteResult{}, err
	}
	outPath := filepath.Join(outDir, b.ID+".md")
	md := RenderBoardMarkdown(b, RenderOptions{IncludeMeta: opt.IncludeMeta})
	if err := writeFile(outPath, []byte(md), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Written: []string{outPath}}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
