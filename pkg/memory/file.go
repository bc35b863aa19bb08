package memory

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirgallo/logger"
)

var fileLog = logger.NewCustomLog("memory.FileMemory")

// FileMemory is a thread-safe, file-backed Memory: a single *os.File guarded
// by a sync.RWMutex, opened or created on NewFileMemory and grown in whole
// pages on demand.
type FileMemory struct {
	file *os.File
	mu   sync.RWMutex
}

// NewFileMemory creates or opens the file at path and wraps it as a Memory.
// Parent directories are created as needed, matching storage.NewStorage.
func NewFileMemory(path string) (*FileMemory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	return &FileMemory{file: file}, nil
}

func (m *FileMemory) Size() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stat, err := m.file.Stat()
	if err != nil {
		panic(err)
	}
	return uint64(stat.Size()) / PageSize
}

// Grow extends the file to a whole number of additional pages by truncating
// it out to the new length. Sparse files mean this does not actually
// allocate disk blocks until written, but the logical size is committed
// immediately so Size() is consistent with any concurrent reader.
func (m *FileMemory) Grow(pages uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	stat, err := m.file.Stat()
	if err != nil {
		panic(err)
	}
	prevSize := stat.Size()
	prevPages := uint64(prevSize) / PageSize

	newSize := prevSize + int64(pages*PageSize)
	fileLog.Debug("growing file memory to size in bytes:", newSize)
	if err := m.file.Truncate(newSize); err != nil {
		fileLog.Error("error growing file memory:", err.Error())
		panic(err)
	}

	return prevPages
}

func (m *FileMemory) Read(offset uint64, buf []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := m.file.ReadAt(buf, int64(offset)); err != nil {
		panic(err)
	}
}

func (m *FileMemory) Write(offset uint64, bytes []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.file.WriteAt(bytes, int64(offset)); err != nil {
		panic(err)
	}
}

// Close releases the underlying file descriptor.
func (m *FileMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.file.Close()
}
