package coretools

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/agencyswarm/claii/pkg/sandbox"
)

// ListFiles describes the entries of directory, one line each, sorted by
// name. An empty or "." directory lists the root.
func (t *Toolset) ListFiles(root, directory string) (string, error) {
	target, err := sandbox.Resolve(root, directory)
	if err != nil {
		if errors.Is(err, sandbox.ErrOutsideRoot) {
			return "", toolErrorf(sandbox.ErrOutsideRoot, "Cannot list %q as it is outside the permitted working directory", directory)
		}
		return "", err
	}

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return "", toolErrorf(sandbox.ErrNotDirectory, "%q is not a directory", directory)
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		full := filepath.Join(target, entry.Name())
		if canon, err := sandbox.CanonicalRoot(full); err == nil && t.hidden(canon) {
			continue
		}
		entryInfo, err := os.Stat(full)
		if err != nil {
			// Dangling symlinks still get a line.
			if entryInfo, err = entry.Info(); err != nil {
				return "", err
			}
		}
		lines = append(lines, fmt.Sprintf("- %s: file_size=%d bytes, is_dir=%t", entry.Name(), entryInfo.Size(), entryInfo.IsDir()))
	}
	if len(lines) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(lines, "\n"), nil
}

// ReadFile returns up to MaxFileChars characters of a regular file. Longer
// files are cut and marked.
func (t *Toolset) ReadFile(root, filePath string) (string, error) {
	target, err := sandbox.Resolve(root, filePath)
	if err != nil {
		if errors.Is(err, sandbox.ErrOutsideRoot) {
			return "", toolErrorf(sandbox.ErrOutsideRoot, "Cannot read %q as it is outside the permitted working directory", filePath)
		}
		return "", err
	}
	if t.hidden(target) {
		return "", toolErrorf(ErrReserved, "Cannot read %q as it is reserved", filePath)
	}
	if !isRegularFile(target) {
		return "", toolErrorf(sandbox.ErrNotRegularFile, "File not found or is not a regular file: %q", filePath)
	}

	content, truncated, err := readRunes(target, t.opts.MaxFileChars)
	if err != nil {
		return "", err
	}
	if truncated {
		content += fmt.Sprintf("\n[...File %q truncated at %d characters]", filePath, t.opts.MaxFileChars)
	}
	return content, nil
}

// WriteFile creates or replaces a file, creating parent directories as
// needed. The content lands through a rename so readers never see a partial
// file.
func (t *Toolset) WriteFile(root, filePath, content string) (string, error) {
	target, err := sandbox.Resolve(root, filePath)
	if err != nil {
		if errors.Is(err, sandbox.ErrOutsideRoot) {
			return "", toolErrorf(sandbox.ErrOutsideRoot, "Cannot write to %q as it is outside the permitted working directory", filePath)
		}
		return "", err
	}
	if t.hidden(target) {
		return "", toolErrorf(ErrReserved, "Cannot write to %q as it is reserved", filePath)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}
	if err := writeFileAtomic(target, []byte(content)); err != nil {
		return "", err
	}

	return fmt.Sprintf("Successfully wrote to %q (%d characters written)", filePath, utf8.RuneCountInString(content)), nil
}

// ReadKBFile reads a knowledge base document under <root>/<KBDir>. Content
// beyond MaxKBChars is dropped without a marker.
func (t *Toolset) ReadKBFile(root, kbPath string) (string, error) {
	// A kb directory that links out of the workspace is not followed.
	kbRoot, err := sandbox.Resolve(root, t.opts.KBDir)
	if err != nil {
		if errors.Is(err, sandbox.ErrOutsideRoot) {
			return "", toolErrorf(sandbox.ErrOutsideRoot, "Cannot read %q as the KB directory is outside the permitted working directory", kbPath)
		}
		return "", err
	}

	target, err := sandbox.Resolve(kbRoot, kbPath)
	if err != nil {
		if errors.Is(err, sandbox.ErrOutsideRoot) {
			return "", toolErrorf(sandbox.ErrOutsideRoot, "Cannot read %q as it is outside the KB directory", kbPath)
		}
		return "", err
	}
	if t.hidden(target) {
		return "", toolErrorf(ErrReserved, "Cannot read %q as it is reserved", kbPath)
	}
	if !isRegularFile(target) {
		return "", toolErrorf(sandbox.ErrNotFound, "KB file not found: %q", kbPath)
	}

	content, _, err := readRunes(target, t.opts.MaxKBChars)
	return content, err
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// readRunes reads at most limit characters of UTF-8 text and reports
// whether more remained.
func readRunes(path string, limit int) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var sb strings.Builder
	for n := 0; ; n++ {
		ch, size, err := r.ReadRune()
		if err == io.EOF {
			return sb.String(), false, nil
		}
		if err != nil {
			return "", false, err
		}
		if ch == utf8.RuneError && size == 1 {
			return "", false, fmt.Errorf("%s is not valid UTF-8 text", filepath.Base(path))
		}
		if n == limit {
			return sb.String(), true, nil
		}
		sb.WriteRune(ch)
	}
}

func writeFileAtomic(target string, data []byte) error {
	mode := fs.FileMode(0644)
	if info, err := os.Stat(target); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", filepath.Base(target))
		}
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
