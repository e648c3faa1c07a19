package model

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// checkpointEntry is the pickle entry every torch.save zip archive carries.
	checkpointEntry = "data.pkl"

	// pickleProto is the PROTO opcode that starts a legacy (pre-1.6)
	// torch.save file, which is a bare pickle stream.
	pickleProto = 0x80
)

// zipMagic starts every zip archive with a local file header.
var zipMagic = []byte("PK\x03\x04")

// Handle is a loaded, validated weights file. It is never mutated after Load.
type Handle struct {
	// Path is the absolute path to the weights file.
	Path string

	// Name is the file name without extension, e.g. "yolov8n".
	Name string

	// Size is the file size in bytes.
	Size int64

	// Digest is the hex SHA-256 of the file contents.
	Digest string

	// LoadedAt is the time the handle was created.
	LoadedAt time.Time
}

// Load opens the weights file at path and checks that it is a PyTorch
// checkpoint archive. Errors wrap ErrNotFound, ErrCorrupt or ErrIncompatible.
func Load(path string) (*Handle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("model: resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("model: %w: %s", ErrNotFound, abs)
		}
		return nil, fmt.Errorf("model: %w: %w", ErrCorrupt, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("model: %w: %s is a directory", ErrIncompatible, abs)
	}

	if err := checkArchive(abs, info.Size()); err != nil {
		return nil, err
	}

	digest, err := digestFile(abs)
	if err != nil {
		return nil, fmt.Errorf("model: %w: %w", ErrCorrupt, err)
	}

	h := &Handle{
		Path:     abs,
		Name:     strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)),
		Size:     info.Size(),
		Digest:   digest,
		LoadedAt: time.Now(),
	}

	slog.Debug("Weights loaded", "path", h.Path, "size", h.Size, "sha256", h.Digest)
	return h, nil
}

// checkArchive verifies the file is a zip archive holding a pickled checkpoint.
func checkArchive(path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("model: %w: %w", ErrCorrupt, err)
	}
	defer f.Close()

	header := make([]byte, len(zipMagic))
	n, _ := io.ReadFull(f, header)
	header = header[:n]

	if !bytes.Equal(header, zipMagic) {
		if n > 0 && header[0] == pickleProto {
			return fmt.Errorf("model: %w: %s is a legacy pickle checkpoint, re-save it with torch>=1.6", ErrIncompatible, path)
		}
		return fmt.Errorf("model: %w: %s is not a zip archive", ErrCorrupt, path)
	}

	zr, err := zip.NewReader(f, size)
	if err != nil {
		return fmt.Errorf("model: %w: damaged archive: %w", ErrCorrupt, err)
	}

	for _, entry := range zr.File {
		if entry.Name == checkpointEntry || strings.HasSuffix(entry.Name, "/"+checkpointEntry) {
			return nil
		}
	}

	return fmt.Errorf("model: %w: no %s entry in %s", ErrIncompatible, checkpointEntry, path)
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
