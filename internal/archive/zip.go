// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

var (
	errUnsupported = errors.New("unsupported archive extension")
	errRarDisabled = errors.New("rar support requires an unrar tool")
)

// zipArchive serves .zip and .cbz containers.
type zipArchive struct {
	*index
	path    string
	tempDir string
	reader  *zip.ReadCloser
	files   map[string]*zip.File
}

func openZip(archivePath, tempDir string) (*zipArchive, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, apperr.CreateArchiveFail(archivePath, err)
	}

	// CRC test: every entry is read to the end, which verifies its checksum.
	members := make(map[string]bool, len(reader.File))
	files := make(map[string]*zip.File, len(reader.File))
	for _, file := range reader.File {
		name := normalize(file.Name)
		isDir := strings.HasSuffix(name, "/") || file.FileInfo().IsDir()
		members[name] = isDir
		if isDir {
			continue
		}
		files[name] = file
		if err := testEntry(file); err != nil {
			_ = reader.Close()
			return nil, apperr.CreateArchiveFail(archivePath, fmt.Errorf("bad entry %s: %w", name, err))
		}
	}

	return &zipArchive{
		index:   newIndex(members),
		path:    archivePath,
		tempDir: tempDir,
		reader:  reader,
		files:   files,
	}, nil
}

func testEntry(file *zip.File) error {
	stream, err := file.Open()
	if err != nil {
		return err
	}
	defer stream.Close()
	_, err = io.Copy(io.Discard, stream)
	return err
}

func (z *zipArchive) Path() string { return z.path }

func (z *zipArchive) OpenStream(member string) (io.ReadCloser, error) {
	file, ok := z.files[normalize(member)]
	if !ok {
		return nil, apperr.FileNotFoundInArchive(member)
	}
	return file.Open()
}

func (z *zipArchive) Open(member string) ([]byte, error) {
	stream, err := z.OpenStream(member)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	return io.ReadAll(stream)
}

func (z *zipArchive) Extract(member, dest string) (string, error) {
	if !z.has(member) {
		return "", apperr.FileNotFoundInArchive(member)
	}
	root, err := destination(dest, z.tempDir)
	if err != nil {
		return "", fmt.Errorf("archive: prepare destination: %w", err)
	}

	for _, name := range z.subtree(member) {
		if err := z.extractFile(name, root); err != nil {
			return "", err
		}
	}
	if z.IsDir(member) {
		target, err := safeJoin(root, strings.TrimSuffix(normalize(member), "/"))
		if err != nil {
			return "", err
		}
		return target, os.MkdirAll(target, 0o755)
	}
	return safeJoin(root, normalize(member))
}

func (z *zipArchive) ExtractAll(dest string) (string, error) {
	root, err := destination(dest, z.tempDir)
	if err != nil {
		return "", fmt.Errorf("archive: prepare destination: %w", err)
	}
	for name := range z.files {
		if err := z.extractFile(name, root); err != nil {
			return "", err
		}
	}
	return root, nil
}

func (z *zipArchive) extractFile(name, root string) error {
	file, ok := z.files[name]
	if !ok {
		return apperr.FileNotFoundInArchive(name)
	}
	target, err := safeJoin(root, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("archive: create folder: %w", err)
	}

	source, err := file.Open()
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", name, err)
	}
	defer source.Close()

	output, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", target, err)
	}
	if _, err := io.Copy(output, source); err != nil {
		_ = output.Close()
		return fmt.Errorf("archive: write %s: %w", target, err)
	}
	return output.Close()
}

func (z *zipArchive) Close() error { return z.reader.Close() }
