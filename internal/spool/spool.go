// Package spool manages the directory of playable output files: unique
// ordered names, atomic writes, the "latest" pointer and the silent fallback.
package spool

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

const (
	// LatestName is the file name of the pointer to the newest synthesized output.
	LatestName = "latest.wav"

	outputFileFormat = "%d_%04d.wav"
	filePermissions  = 0o644
	dirPermissions   = 0o750

	fallbackSampleRate    = 24000
	fallbackBitsPerSample = 16
	fallbackChannels      = 1
	fallbackDuration      = time.Second
)

// ErrOutputPathEmpty is returned when a write targets an empty path.
var ErrOutputPathEmpty = errors.New("output path cannot be empty")

// Spool allocates output paths inside one directory.
type Spool struct {
	dir string
	seq atomic.Uint64
}

// New creates the directory if needed and returns a Spool rooted there.
func New(dir string) (*Spool, error) {
	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	return &Spool{dir: dir}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// NextPath returns a fresh output path named timestamp_sequence, so a plain
// directory listing sorts outputs in allocation order.
func (s *Spool) NextPath(now time.Time) string {
	seq := s.seq.Add(1)

	return filepath.Join(s.dir, fmt.Sprintf(outputFileFormat, now.UnixMilli(), seq))
}

// LatestPath returns the path of the latest pointer.
func (s *Spool) LatestPath() string {
	return filepath.Join(s.dir, LatestName)
}

// UpdateLatest points latest.wav at target. A symlink is swapped in
// atomically; when symlinks are unavailable the file is copied instead.
func (s *Spool) UpdateLatest(target string) error {
	latest := s.LatestPath()
	tmpLink := latest + ".tmp"

	_ = os.Remove(tmpLink)

	absTarget, absErr := filepath.Abs(target)
	if absErr != nil {
		absTarget = target
	}

	linkErr := os.Symlink(absTarget, tmpLink)
	if linkErr == nil {
		renameErr := os.Rename(tmpLink, latest)
		if renameErr == nil {
			return nil
		}

		_ = os.Remove(tmpLink)
	}

	copyErr := CopyFile(target, latest)
	if copyErr != nil {
		return fmt.Errorf("failed to update latest pointer: %w", copyErr)
	}

	return nil
}

// WriteFallback writes a short silent WAV to path.
func WriteFallback(path string) error {
	return WriteFile(path, SilentWAV(fallbackDuration))
}

// WriteFile writes data to path through a temp file and rename, so readers
// never observe a partially written file.
func WriteFile(path string, data []byte) error {
	return writeAtomic(path, bytes.NewReader(data))
}

// CopyFile copies src to dst atomically.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	return writeAtomic(dst, in)
}

// LinkOrCopy hard-links src to dst, copying when linking is not possible.
// An existing dst is left untouched.
func LinkOrCopy(src, dst string) error {
	_, statErr := os.Stat(dst)
	if statErr == nil {
		return nil
	}

	linkErr := os.Link(src, dst)
	if linkErr == nil || errors.Is(linkErr, os.ErrExist) {
		return nil
	}

	return CopyFile(src, dst)
}

func writeAtomic(path string, src io.Reader) error {
	if path == "" {
		return ErrOutputPathEmpty
	}

	dir := filepath.Dir(path)

	dirErr := os.MkdirAll(dir, dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, dirErr)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}

	tmpName := tmp.Name()

	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write %s: %w", path, errors.Join(copyErr, closeErr))
	}

	chmodErr := os.Chmod(tmpName, filePermissions)
	if chmodErr != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to set permissions on %s: %w", path, chmodErr)
	}

	renameErr := os.Rename(tmpName, path)
	if renameErr != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to move %s into place: %w", path, renameErr)
	}

	return nil
}

// SilentWAV returns a 16-bit mono PCM RIFF/WAVE file of the given duration at 24 kHz.
func SilentWAV(duration time.Duration) []byte {
	const bytesPerSample = fallbackBitsPerSample / 8

	samples := int(duration.Seconds() * fallbackSampleRate)
	dataSize := uint32(samples * bytesPerSample * fallbackChannels)
	byteRate := uint32(fallbackSampleRate * fallbackChannels * bytesPerSample)
	blockAlign := uint16(fallbackChannels * bytesPerSample)

	buf := bytes.NewBuffer(make([]byte, 0, 44+int(dataSize)))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36)+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(fallbackChannels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(fallbackSampleRate))
	_ = binary.Write(buf, binary.LittleEndian, byteRate)
	_ = binary.Write(buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(buf, binary.LittleEndian, uint16(fallbackBitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(make([]byte, dataSize))

	return buf.Bytes()
}
