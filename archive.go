package primeshard

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/klauspost/compress/zstd"

	internalfs "primeshard/internal/fs"
)

// Codec is the external archive collaborator ShardFile writes through
// (spec.md §4.4): write a mapping of chunk name -> ordered Item array as a
// single compressed multi-array archive, and read one back as the same
// shape. ShardFile treats this as a swappable boundary; only here does an
// Item array need to be a contiguous byte buffer.
type Codec interface {
	Write(fsys internalfs.FS, path string, chunks map[string][]Item) error
	Open(fsys internalfs.FS, path string) (map[string][]Item, error)
}

// Archive container constants. The format is this module's own — not an
// actual numpy .npz, despite shard files keeping the ".npz" extension
// spec.md §6 specifies for the filesystem layout — grounded on the
// magic+version+header style of the teacher's cache_binary.go.
const (
	archiveMagic   = "PSA1"
	archiveVersion = 1
)

var archiveCRCTable = crc32.MakeTable(crc32.Castagnoli)

// ErrArchiveInvalid marks a malformed archive file.
var ErrArchiveInvalid = errors.New("primeshard: invalid shard archive")

// ZstdCodec implements Codec using per-entry zstd compression
// (github.com/klauspost/compress/zstd, grounded on its use as a direct
// dependency in the example pack's ncps/pebble/arena-cache lineage) inside
// a small custom container: a 4-byte magic, a version byte, an entry count,
// then one record per chunk (name, item count, compressed payload, and a
// CRC32C checksum of the compressed bytes, the same checksum table the
// teacher's WAL uses).
type ZstdCodec struct{}

// NewZstdCodec returns the default, stateless Codec.
func NewZstdCodec() ZstdCodec { return ZstdCodec{} }

// Write serializes chunks into path as a single archive file.
func (ZstdCodec) Write(fsys internalfs.FS, path string, chunks map[string][]Item) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer func() { _ = enc.Close() }()

	var buf bytes.Buffer

	buf.WriteString(archiveMagic)
	buf.WriteByte(archiveVersion)

	binary.Write(&buf, binary.LittleEndian, uint32(len(chunks))) //nolint:errcheck,gosec // bytes.Buffer never errors

	// Deterministic order keeps archive bytes reproducible across writes
	// with identical input, which DESIGN.md's grounding for the round-trip
	// property test relies on.
	names := make([]string, 0, len(chunks))
	for name := range chunks {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		items := chunks[name]

		raw := make([]byte, len(items)*ItemSize)
		for i, v := range items {
			binary.LittleEndian.PutUint64(raw[i*ItemSize:], v)
		}

		compressed := enc.EncodeAll(raw, nil)
		checksum := crc32.Checksum(compressed, archiveCRCTable)

		if len(name) > 0xFFFF {
			return fmt.Errorf("%w: chunk name too long", ErrInvalidArgument)
		}

		binary.Write(&buf, binary.LittleEndian, uint16(len(name))) //nolint:errcheck // bytes.Buffer never errors
		buf.WriteString(name)
		binary.Write(&buf, binary.LittleEndian, uint32(len(items)))      //nolint:errcheck,gosec
		binary.Write(&buf, binary.LittleEndian, uint32(len(compressed))) //nolint:errcheck,gosec
		binary.Write(&buf, binary.LittleEndian, checksum)                //nolint:errcheck
		buf.Write(compressed)
	}

	if err := fsys.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing archive %s: %w", path, err)
	}

	return nil
}

// Open reads path back into a name -> Item-array mapping.
func (ZstdCodec) Open(fsys internalfs.FS, path string) (map[string][]Item, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", path, err)
	}

	r := bytes.NewReader(data)

	magic := make([]byte, len(archiveMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != archiveMagic {
		return nil, fmt.Errorf("%w: %s: bad magic", ErrArchiveInvalid, path)
	}

	version, err := r.ReadByte()
	if err != nil || version != archiveVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version", ErrArchiveInvalid, path)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %s: truncated header: %w", ErrArchiveInvalid, path, err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	out := make(map[string][]Item, count)

	for i := uint32(0); i < count; i++ {
		name, items, err := readArchiveEntry(r, dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: entry %d: %w", ErrArchiveInvalid, path, i, err)
		}

		out[name] = items
	}

	return out, nil
}

func readArchiveEntry(r *bytes.Reader, dec *zstd.Decoder) (string, []Item, error) {
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return "", nil, err
	}

	nameBytes := make([]byte, nameLen)
	if _, err := r.Read(nameBytes); err != nil {
		return "", nil, err
	}

	var itemCount, compressedLen uint32

	if err := binary.Read(r, binary.LittleEndian, &itemCount); err != nil {
		return "", nil, err
	}

	if err := binary.Read(r, binary.LittleEndian, &compressedLen); err != nil {
		return "", nil, err
	}

	var checksum uint32
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return "", nil, err
	}

	compressed := make([]byte, compressedLen)
	if _, err := r.Read(compressed); err != nil {
		return "", nil, err
	}

	if crc32.Checksum(compressed, archiveCRCTable) != checksum {
		return "", nil, fmt.Errorf("checksum mismatch")
	}

	raw, err := dec.DecodeAll(compressed, make([]byte, 0, itemCount*ItemSize))
	if err != nil {
		return "", nil, fmt.Errorf("decompressing: %w", err)
	}

	items := make([]Item, itemCount)
	for i := range items {
		items[i] = binary.LittleEndian.Uint64(raw[i*ItemSize:])
	}

	return string(nameBytes), items, nil
}
