package coco

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lewtec/rotulador-video/internal/domain"
)

// Encode renders the dataset as JSON indented with four spaces
func (d *Dataset) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (d *Dataset) Write(w io.Writer) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes the dataset next to path under a temporary name and renames it into place,
// so a failed export never leaves a partial file. It returns the sha256 of the written bytes.
func (d *Dataset) WriteFile(path string) (string, error) {
	data, err := d.Encode()
	if err != nil {
		return "", fmt.Errorf("%w: while encoding dataset: %w", domain.ErrExport, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", fmt.Errorf("%w: while creating '%s': %w", domain.ErrExport, dir, err)
	}
	tempFile := filepath.Join(dir, fmt.Sprintf(".%s.json.tmp", uuid.New()))
	f, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrExport, err)
	}
	hasher := sha256.New()
	w := io.MultiWriter(f, hasher)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		f.Close()
		os.Remove(tempFile)
		return "", fmt.Errorf("%w: while writing '%s': %w", domain.ErrExport, path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("%w: %w", domain.ErrExport, err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("%w: %w", domain.ErrExport, err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// HashFile is the sha256 of a file's contents, used to check an export against its history record
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
