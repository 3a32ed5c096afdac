package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/eclipse-pass/depositsvc/pkg/assemble"
	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// filesystemFile is the on-disk shape this wiring expects in a
// Submission's opaque Files blob (spec.md §1 non-goal: the submission
// content model itself is a supplied value object, so this is one
// concrete choice among several a deployer could substitute).
type filesystemFile struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Path     string `json:"path"`
	SizeHint int64  `json:"sizeHint"`
}

// FilesystemSubmissionLoader implements deposit.SubmissionLoader by
// treating a Submission's Files blob as a JSON array of filesystemFile
// objects (name, mimeType, path, sizeHint) whose local paths are
// opened lazily when the assembler pulls them.
type FilesystemSubmissionLoader struct{}

func (FilesystemSubmissionLoader) Load(ctx context.Context, sub *store.Submission) (assemble.Submission, error) {
	var files []filesystemFile
	if len(sub.Files) > 0 {
		if err := json.Unmarshal(sub.Files, &files); err != nil {
			return assemble.Submission{}, fmt.Errorf("loader: decoding files for submission %s: %w", sub.ID, err)
		}
	}

	assembled := assemble.Submission{ID: sub.ID, Metadata: []byte(sub.Metadata)}
	for _, f := range files {
		path := f.Path
		assembled.Files = append(assembled.Files, assemble.File{
			Name:     f.Name,
			MimeType: f.MimeType,
			SizeHint: f.SizeHint,
			Open:     func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return assembled, nil
}
