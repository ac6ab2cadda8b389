package testsupport

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	mkdirFor(t, path)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := bytes.Repeat([]byte{0x42}, chunkSize)
	remaining := size
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteEmpty creates a zero-byte file.
func WriteEmpty(t testing.TB, path string) {
	t.Helper()
	mkdirFor(t, path)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteCSV writes a comma-separated sensor log with the given header and rows.
func WriteCSV(t testing.TB, path string, header []string, rows ...[]string) {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	mkdirFor(t, path)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteJPEGWithCapture writes a minimal JPEG whose EXIF block carries only a
// DateTimeOriginal tag set to captured.
func WriteJPEGWithCapture(t testing.TB, path string, captured time.Time) {
	t.Helper()
	mkdirFor(t, path)
	if err := os.WriteFile(path, JPEGWithCapture(captured), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// JPEGWithCapture builds the bytes written by WriteJPEGWithCapture.
func JPEGWithCapture(captured time.Time) []byte {
	stamp := append([]byte(captured.Format("2006:01:02 15:04:05")), 0)

	le := binary.LittleEndian
	var tiff bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, le, uint16(42))
	_ = binary.Write(&tiff, le, uint32(8))

	// IFD0: one entry pointing at the Exif sub-IFD.
	const exifIFD = 8 + 2 + 12 + 4
	_ = binary.Write(&tiff, le, uint16(1))
	_ = binary.Write(&tiff, le, uint16(0x8769))
	_ = binary.Write(&tiff, le, uint16(4))
	_ = binary.Write(&tiff, le, uint32(1))
	_ = binary.Write(&tiff, le, uint32(exifIFD))
	_ = binary.Write(&tiff, le, uint32(0))

	// Exif IFD: DateTimeOriginal stored after the directory.
	const valueOffset = exifIFD + 2 + 12 + 4
	_ = binary.Write(&tiff, le, uint16(1))
	_ = binary.Write(&tiff, le, uint16(0x9003))
	_ = binary.Write(&tiff, le, uint16(2))
	_ = binary.Write(&tiff, le, uint32(len(stamp)))
	_ = binary.Write(&tiff, le, uint32(valueOffset))
	_ = binary.Write(&tiff, le, uint32(0))
	tiff.Write(stamp)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

func mkdirFor(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
}
