package statecache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/natefinch/atomic"

	"github.com/gogpu/pipecache/pipeline"
	"github.com/gogpu/pipecache/shader"
)

// Binary file format constants.
//
// Layout (little-endian):
//
//	header   magic[4] version u16 reserved u16 count u32 reserved u32
//	entries  count × entrySize
//	trailer  FNV-1a 64 checksum of header and entries
//
// Entry:
//
//	kind u8, stages 5 × u8, pad[2], color format u32, depth format u32,
//	sample count u32, reserved u32, hashes 5 × u64
const (
	fileMagic         = "PSC1"
	fileVersion       = 2
	fileHeaderSize    = 16
	entrySize         = 64
	entryStagesOffset = 1
	entryHashesOffset = 24
	checksumSize      = 8
	minFileSize       = fileHeaderSize + checksumSize
)

// File errors.
var (
	ErrInvalidMagic    = errors.New("statecache: invalid file magic")
	ErrVersionMismatch = errors.New("statecache: file version mismatch")
	ErrCorrupt         = errors.New("statecache: file corrupt")
)

// ReadFile loads the entries persisted at path. A missing file is
// reported with an error satisfying errors.Is(err, os.ErrNotExist).
func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading state cache: %w", err)
	}
	return decode(data)
}

// WriteFile persists entries at path. The file is replaced atomically.
func WriteFile(path string, entries []Entry) error {
	buf := encode(entries)
	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("writing state cache: %w", err)
	}
	return nil
}

func encode(entries []Entry) []byte {
	size := fileHeaderSize + len(entries)*entrySize + checksumSize
	buf := make([]byte, size)

	copy(buf[0:4], fileMagic)
	binary.LittleEndian.PutUint16(buf[4:6], fileVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(entries)))

	for i, e := range entries {
		putEntry(buf[fileHeaderSize+i*entrySize:], e)
	}

	body := buf[:size-checksumSize]
	binary.LittleEndian.PutUint64(buf[size-checksumSize:], checksum(body))
	return buf
}

func decode(data []byte) ([]Entry, error) {
	if len(data) < minFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}
	if string(data[0:4]) != fileMagic {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != fileVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, v, fileVersion)
	}

	count := int(binary.LittleEndian.Uint32(data[8:12]))
	if want := fileHeaderSize + count*entrySize + checksumSize; len(data) != want {
		return nil, fmt.Errorf("%w: %d entries need %d bytes, have %d",
			ErrCorrupt, count, want, len(data))
	}

	body := data[:len(data)-checksumSize]
	if sum := binary.LittleEndian.Uint64(data[len(data)-checksumSize:]); sum != checksum(body) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	entries := make([]Entry, 0, count)
	for i := range count {
		e := getEntry(data[fileHeaderSize+i*entrySize:])
		if !e.valid() {
			return nil, fmt.Errorf("%w: entry %d invalid", ErrCorrupt, i)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func putEntry(b []byte, e Entry) {
	b[0] = byte(e.Kind)
	for i, st := range e.Stages {
		b[entryStagesOffset+i] = byte(st)
	}
	binary.LittleEndian.PutUint32(b[8:12], uint32(e.Target.ColorFormat))
	binary.LittleEndian.PutUint32(b[12:16], uint32(e.Target.DepthFormat))
	binary.LittleEndian.PutUint32(b[16:20], e.Target.SampleCount)
	for i, h := range e.Hashes {
		binary.LittleEndian.PutUint64(b[entryHashesOffset+i*8:], h)
	}
}

func getEntry(b []byte) Entry {
	e := Entry{
		Kind: pipeline.Kind(b[0]),
		Target: pipeline.RenderTarget{
			ColorFormat: gputypes.TextureFormat(binary.LittleEndian.Uint32(b[8:12])),
			DepthFormat: gputypes.TextureFormat(binary.LittleEndian.Uint32(b[12:16])),
			SampleCount: binary.LittleEndian.Uint32(b[16:20]),
		},
	}
	for i := range e.Stages {
		e.Stages[i] = shader.Stage(b[entryStagesOffset+i])
	}
	for i := range e.Hashes {
		e.Hashes[i] = binary.LittleEndian.Uint64(b[entryHashesOffset+i*8:])
	}
	return e
}

func checksum(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
