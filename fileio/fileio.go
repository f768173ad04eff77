// Package fileio is the persistence collaborator front-ends use to save
// game artifacts. Every outcome is returned as a value; nothing panics.
package fileio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// WriteResult is the outcome of WriteFile: Success, AlreadyExists or Failure.
type WriteResult interface {
	writeResult()
	String() string
}

// Success means the content was written.
type Success struct{}

// AlreadyExists means the file exists and overwriting was not allowed.
type AlreadyExists struct {
	Filename string
}

// Failure carries the error text of any other failure.
type Failure struct {
	Message string
}

func (Success) writeResult()       {}
func (AlreadyExists) writeResult() {}
func (Failure) writeResult()       {}

func (Success) String() string         { return "saved" }
func (r AlreadyExists) String() string { return fmt.Sprintf("%s already exists", r.Filename) }
func (r Failure) String() string       { return "write failed: " + r.Message }

// FileIO writes files and serializes values.
type FileIO interface {
	WriteFile(filename string, allowOverwrite bool, content string) WriteResult
	Serialize(v any) (string, error)
}

// OS implements FileIO on the local file system.
type OS struct {
	// Perm is used for newly created files; zero means 0o644.
	Perm fs.FileMode
}

// WriteFile writes content to filename. Without allowOverwrite the file is
// created exclusively, so an existing file is never touched.
func (o OS) WriteFile(filename string, allowOverwrite bool, content string) WriteResult {
	perm := o.Perm
	if perm == 0 {
		perm = 0o644
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !allowOverwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	f, err := os.OpenFile(filename, flags, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return AlreadyExists{Filename: filename}
		}
		return Failure{Message: err.Error()}
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return Failure{Message: err.Error()}
	}
	if err := f.Close(); err != nil {
		return Failure{Message: err.Error()}
	}
	return Success{}
}

// Serialize renders v as indented JSON.
func (OS) Serialize(v any) (string, error) { return Serialize(v) }

// Serialize renders v as indented JSON.
func Serialize(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	return string(b), nil
}

// Save serializes v and writes it to filename.
func Save(fio FileIO, filename string, allowOverwrite bool, v any) WriteResult {
	content, err := fio.Serialize(v)
	if err != nil {
		return Failure{Message: err.Error()}
	}
	return fio.WriteFile(filename, allowOverwrite, content)
}
