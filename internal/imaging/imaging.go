// Package imaging provides the chunked read/hash/write primitives the
// workflow engine builds every copy, verify, and raw-write action on
// top of: chunk planning, per-chunk SHA-256 with an overall running
// digest, and streaming image-to-device writes with an optional
// post-write verification pass.
package imaging

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

// DefaultChunkSize is used by callers that do not have a config value
// in scope (e.g. ad-hoc tooling); production paths take the chunk
// size from internal/config.
const DefaultChunkSize = 4 << 20

// ChunkRange is one entry of a chunk plan.
type ChunkRange struct {
	Index  int
	Offset int64
	Size   int64
}

// ChunkHash is a ChunkRange annotated with its SHA-256 digest.
type ChunkHash struct {
	Offset int64
	Size   int64
	SHA256 string
}

// PlanChunks covers [0, totalBytes) with chunkSize-sized ranges, the
// last possibly smaller. An empty plan results when either input is
// zero, matching the imaging primitive's degenerate-input contract.
func PlanChunks(totalBytes, chunkSize int64) []ChunkRange {
	if totalBytes <= 0 || chunkSize <= 0 {
		return []ChunkRange{}
	}
	var plan []ChunkRange
	var offset int64
	index := 0
	for offset < totalBytes {
		size := chunkSize
		if remaining := totalBytes - offset; remaining < size {
			size = remaining
		}
		plan = append(plan, ChunkRange{Index: index, Offset: offset, Size: size})
		offset += size
		index++
	}
	return plan
}

// ProgressEvent is emitted synchronously, same-thread, after each
// chunk. The observer returns false to request cancellation, which
// is honored at the next chunk boundary.
type ProgressEvent struct {
	ChunkIndex  int
	TotalChunks int
	BytesDone   int64
	TotalBytes  int64
}

// ProgressObserver is called once per chunk. Returning false aborts
// the operation with ferr.Cancelled.
type ProgressObserver func(ProgressEvent) bool

// HashReaderChunks reads exactly totalBytes from r in chunkSize
// pieces, computing a SHA-256 per chunk and an overall running
// SHA-256. A short read is an IO error, never silently truncated.
func HashReaderChunks(r io.Reader, totalBytes, chunkSize int64, observer ProgressObserver) ([]ChunkHash, string, error) {
	if chunkSize <= 0 {
		return nil, "", ferr.New(ferr.Precondition, "chunk size must be positive")
	}
	plan := PlanChunks(totalBytes, chunkSize)
	hashes := make([]ChunkHash, 0, len(plan))
	overall := sha256.New()
	buf := make([]byte, chunkSize)
	var done int64

	for _, c := range plan {
		slice := buf[:c.Size]
		if _, err := io.ReadFull(r, slice); err != nil {
			return nil, "", ferr.Wrap(ferr.IO, "short read during chunk hash", err)
		}
		chunkSum := sha256.Sum256(slice)
		overall.Write(slice)
		hashes = append(hashes, ChunkHash{
			Offset: c.Offset,
			Size:   c.Size,
			SHA256: hex.EncodeToString(chunkSum[:]),
		})
		done += c.Size
		if observer != nil {
			if !observer(ProgressEvent{
				ChunkIndex:  c.Index,
				TotalChunks: len(plan),
				BytesDone:   done,
				TotalBytes:  totalBytes,
			}) {
				return nil, "", ferr.New(ferr.Cancelled, "hashing cancelled by observer")
			}
		}
	}
	return hashes, hex.EncodeToString(overall.Sum(nil)), nil
}

// HashFileChunks opens path and chunk-hashes exactly its current
// size, the usual entry point for disk_hash_report and post-write
// verification passes.
func HashFileChunks(path string, chunkSize int64, observer ProgressObserver) ([]ChunkHash, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", ferr.Wrap(ferr.IO, "open for hashing", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, "", ferr.Wrap(ferr.IO, "stat for hashing", err)
	}
	return HashReaderChunks(f, info.Size(), chunkSize, observer)
}

// StreamResult reports the outcome of StreamImageToDevice.
type StreamResult struct {
	BytesWritten int64
	ImageHash    string
	DeviceHash   string
	VerifyOK     bool
	Verified     bool
}

// StreamImageToDevice copies sourcePath to targetPath in chunkSize
// pieces, computing a running SHA-256 of the bytes as written. After
// the write it calls Sync; when verify is true it reopens the target
// read-only and rehashes exactly the bytes written, reporting whether
// the two digests match.
func StreamImageToDevice(sourcePath, targetPath string, chunkSize int64, verify bool, observer ProgressObserver) (StreamResult, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return StreamResult{}, ferr.Wrap(ferr.IO, "open source image", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return StreamResult{}, ferr.Wrap(ferr.IO, "stat source image", err)
	}
	totalBytes := info.Size()

	dst, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE, 0o666)
	if err != nil {
		return StreamResult{}, ferr.Wrap(ferr.IO, "open target device", err)
	}

	plan := PlanChunks(totalBytes, chunkSize)
	overall := sha256.New()
	buf := make([]byte, chunkSize)
	var written int64

	for _, c := range plan {
		slice := buf[:c.Size]
		if _, err := io.ReadFull(src, slice); err != nil {
			dst.Close()
			return StreamResult{}, ferr.Wrap(ferr.IO, "short read from source image", err)
		}
		if _, err := dst.Write(slice); err != nil {
			dst.Close()
			return StreamResult{}, ferr.Wrap(ferr.IO, "write to target device", err)
		}
		overall.Write(slice)
		written += c.Size
		if observer != nil {
			if !observer(ProgressEvent{
				ChunkIndex:  c.Index,
				TotalChunks: len(plan),
				BytesDone:   written,
				TotalBytes:  totalBytes,
			}) {
				dst.Close()
				return StreamResult{}, ferr.New(ferr.Cancelled, "image write cancelled by observer")
			}
		}
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		return StreamResult{}, ferr.Wrap(ferr.IO, "sync target device", err)
	}
	if err := dst.Close(); err != nil {
		return StreamResult{}, ferr.Wrap(ferr.IO, "close target device", err)
	}

	result := StreamResult{
		BytesWritten: written,
		ImageHash:    hex.EncodeToString(overall.Sum(nil)),
	}

	if verify {
		devHash, err := hashExactBytes(targetPath, totalBytes, chunkSize)
		if err != nil {
			return result, err
		}
		result.DeviceHash = devHash
		result.Verified = true
		result.VerifyOK = devHash == result.ImageHash
	}

	return result, nil
}

func hashExactBytes(path string, totalBytes, chunkSize int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ferr.Wrap(ferr.IO, "reopen target for verify", err)
	}
	defer f.Close()
	_, overall, err := HashReaderChunks(f, totalBytes, chunkSize, nil)
	return overall, err
}
