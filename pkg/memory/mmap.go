package memory

import (
	"os"
	"sync"

	"github.com/sirgallo/logger"
	"golang.org/x/sys/unix"
)

var mmapLog = logger.NewCustomLog("memory.MMapMemory")

// MMapMemory is a Memory backed by a memory-mapped file. Reads and writes
// are plain slice copies against the mapping; growth unmaps, truncates the
// file to the new length, and remaps — the same resize dance
// sirgallo-mmcmap's MMCMap performs around its own mmap region, adapted here
// from its page-number-keyed B-tree map onto this module's linear Memory
// contract.
type MMapMemory struct {
	mu     sync.RWMutex
	file   *os.File
	mapped []byte
}

// NewMMapMemory opens (or creates) the file at path and maps it into memory.
// A freshly created file starts unmapped at zero length; the first Grow
// establishes the initial mapping.
func NewMMapMemory(path string) (*MMapMemory, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	m := &MMapMemory{file: file}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if stat.Size() > 0 {
		mmapLog.Info("file already initialized, memory mapping.")
		if err := m.mmap(stat.Size()); err != nil {
			file.Close()
			return nil, err
		}
	} else {
		mmapLog.Info("initializing memory map for the first time.")
	}

	return m, nil
}

func (m *MMapMemory) mmap(size int64) error {
	mapped, err := unix.Mmap(int(m.file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		mmapLog.Error("error initializing memory map:", err.Error())
		return err
	}
	m.mapped = mapped
	return nil
}

func (m *MMapMemory) unmap() error {
	if m.mapped == nil {
		return nil
	}
	if err := unix.Msync(m.mapped, unix.MS_SYNC); err != nil {
		mmapLog.Error("error flushing to disk", err.Error())
		return err
	}
	if err := unix.Munmap(m.mapped); err != nil {
		mmapLog.Error("error removing memory map:", err.Error())
		return err
	}
	m.mapped = nil
	return nil
}

func (m *MMapMemory) Size() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.mapped)) / PageSize
}

// Grow unmaps, extends the underlying file with unix.Ftruncate, and remaps
// at the new size.
func (m *MMapMemory) Grow(pages uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevPages := uint64(len(m.mapped)) / PageSize
	newSize := int64(len(m.mapped)) + int64(pages*PageSize)

	if err := m.unmap(); err != nil {
		panic(err)
	}

	mmapLog.Debug("resizing mmap file with size in bytes:", newSize)
	if err := unix.Ftruncate(int(m.file.Fd()), newSize); err != nil {
		mmapLog.Error("error resizing memory map:", err.Error())
		panic(err)
	}

	if err := m.mmap(newSize); err != nil {
		panic(err)
	}

	return prevPages
}

func (m *MMapMemory) Read(offset uint64, buf []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := copy(buf, m.mapped[offset:offset+uint64(len(buf))])
	if n != len(buf) {
		panic("memory: short read")
	}
}

func (m *MMapMemory) Write(offset uint64, bytes []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := copy(m.mapped[offset:offset+uint64(len(bytes))], bytes)
	if n != len(bytes) {
		panic("memory: short write")
	}
}

// Close flushes, unmaps, and closes the backing file.
func (m *MMapMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.unmap(); err != nil {
		return err
	}
	return m.file.Close()
}
