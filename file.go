package logstream

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// fileSink is the shared append handle for one log file path. All loggers
// writing the same path share one sink, so rotation can pause every writer.
type fileSink struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// openFileSink opens path for appending, creating parent directories as needed
func openFileSink(path string) (*fileSink, error) {
	if err := ensureDirectory(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmtErrorf("failed to open/create log file '%s': %w", path, err)
	}
	return &fileSink{path: path, file: f}, nil
}

// Write appends p to the file
func (fs *fileSink) Write(p []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return 0, fmtErrorf("log file '%s' is closed", fs.path)
	}
	return fs.file.Write(p)
}

// Rotate archives the current contents to the dated copy and truncates the
// file. Writers are blocked for the duration, so no write lands between the
// copy and the truncate.
func (fs *fileSink) Rotate(now time.Time) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	archive := ArchivePath(fs.path, now)
	if fs.file != nil {
		// Flush pending data before the copy reads it
		_ = fs.file.Sync()
	}
	return archive, copyAndTruncate(fs.path, archive)
}

// Close syncs and closes the underlying file
func (fs *fileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return nil
	}
	var err error
	if errSync := fs.file.Sync(); errSync != nil {
		err = fmtErrorf("failed to sync log file '%s': %w", fs.path, errSync)
	}
	if errClose := fs.file.Close(); errClose != nil {
		err = combineErrors(err, fmtErrorf("failed to close log file '%s': %w", fs.path, errClose))
	}
	fs.file = nil
	return err
}

// ArchivePath returns the rotated file name for path at time t:
// <base>_<DD-MM-YYYY><ext>, in the same directory.
func ArchivePath(path string, t time.Time) string {
	dir, name := filepath.Split(path)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return filepath.Join(dir, base+"_"+t.Format(archiveDateLayout)+ext)
}

// copyAndTruncate streams src into dst through a fixed transfer buffer,
// then truncates src. An existing dst is extended, not replaced.
// Errors from every step are collected, not raised.
func copyAndTruncate(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmtErrorf("failed to open '%s' for rotation: %w", src, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		_ = in.Close()
		return fmtErrorf("failed to create archive '%s': %w", dst, err)
	}

	var finalErr error
	var base int64
	if info, errStat := out.Stat(); errStat != nil {
		finalErr = fmtErrorf("failed to stat archive '%s': %w", dst, errStat)
	} else {
		base = info.Size()
	}

	buf := make([]byte, copyBufferSize)
	var pos int64
	for finalErr == nil {
		n, errRead := in.ReadAt(buf, pos)
		if n > 0 {
			if _, errWrite := out.WriteAt(buf[:n], base+pos); errWrite != nil {
				finalErr = fmtErrorf("failed to write archive '%s' at offset %d: %w", dst, pos, errWrite)
				break
			}
			pos += int64(n)
		}
		if errRead == io.EOF {
			break
		}
		if errRead != nil {
			finalErr = fmtErrorf("failed to read '%s' at offset %d: %w", src, pos, errRead)
			break
		}
	}

	// The original is kept intact if the copy did not complete
	if finalErr == nil {
		if err := os.Truncate(src, 0); err != nil {
			finalErr = fmtErrorf("failed to truncate '%s': %w", src, err)
		}
	}
	if err := in.Close(); err != nil {
		finalErr = combineErrors(finalErr, fmtErrorf("failed to close '%s': %w", src, err))
	}
	if err := out.Close(); err != nil {
		finalErr = combineErrors(finalErr, fmtErrorf("failed to close archive '%s': %w", dst, err))
	}
	return finalErr
}
