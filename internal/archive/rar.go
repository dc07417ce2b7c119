// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

// rarArchive serves .rar and .cbr containers through an external unrar executable.
type rarArchive struct {
	*index
	path    string
	tool    string
	tempDir string
}

func openRar(archivePath, tool, tempDir string) (*rarArchive, error) {
	// Header and data test; unrar exits non-zero on any bad entry.
	if output, err := exec.Command(tool, "t", "-p-", "-idq", "--", archivePath).CombinedOutput(); err != nil {
		return nil, apperr.CreateArchiveFail(archivePath, fmt.Errorf("unrar test: %w: %s", err, strings.TrimSpace(string(output))))
	}

	listing, err := exec.Command(tool, "vt", "-p-", "--", archivePath).Output()
	if err != nil {
		return nil, apperr.CreateArchiveFail(archivePath, fmt.Errorf("unrar list: %w", err))
	}

	return &rarArchive{
		index:   newIndex(parseTechnicalListing(listing)),
		path:    archivePath,
		tool:    tool,
		tempDir: tempDir,
	}, nil
}

// parseTechnicalListing reads "unrar vt" output into member -> is-directory.
//
// Each member block carries a "Name:" line followed by a "Type:" line.
func parseTechnicalListing(listing []byte) map[string]bool {
	members := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(listing))

	current := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Name":
			current = normalize(value)
			members[current] = false
		case "Type":
			if current != "" {
				members[current] = strings.EqualFold(value, "Directory")
			}
		}
	}
	return members
}

func (r *rarArchive) Path() string { return r.path }

func (r *rarArchive) OpenStream(member string) (io.ReadCloser, error) {
	data, err := r.Open(member)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *rarArchive) Open(member string) ([]byte, error) {
	name := normalize(member)
	if !r.has(name) || r.IsDir(name) {
		return nil, apperr.FileNotFoundInArchive(member)
	}
	data, err := exec.Command(r.tool, "p", "-inul", "-p-", "--", r.path, name).Output()
	if err != nil {
		return nil, fmt.Errorf("archive: unrar print %s: %w", name, err)
	}
	return data, nil
}

func (r *rarArchive) Extract(member, dest string) (string, error) {
	name := normalize(member)
	if !r.has(name) {
		return "", apperr.FileNotFoundInArchive(member)
	}
	root, err := destination(dest, r.tempDir)
	if err != nil {
		return "", fmt.Errorf("archive: prepare destination: %w", err)
	}

	pattern := name
	if r.IsDir(name) {
		pattern = strings.TrimSuffix(name, "/") + "/*"
	}
	if err := r.run("x", "-o+", "-inul", "-y", "-p-", "--", r.path, pattern, root+string(filepath.Separator)); err != nil {
		return "", err
	}

	target, err := safeJoin(root, strings.TrimSuffix(name, "/"))
	if err != nil {
		return "", err
	}
	if r.IsDir(name) {
		return target, os.MkdirAll(target, 0o755)
	}
	return target, nil
}

func (r *rarArchive) ExtractAll(dest string) (string, error) {
	root, err := destination(dest, r.tempDir)
	if err != nil {
		return "", fmt.Errorf("archive: prepare destination: %w", err)
	}
	if err := r.run("x", "-o+", "-inul", "-y", "-p-", "--", r.path, root+string(filepath.Separator)); err != nil {
		return "", err
	}
	return root, nil
}

func (r *rarArchive) run(args ...string) error {
	if output, err := exec.Command(r.tool, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("archive: unrar %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (r *rarArchive) Close() error { return nil }
