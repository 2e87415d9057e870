// Package storage provides persistent settings and code storage using LittleFS.
// It handles atomic writes, version checking, and cleanup of temporary files.
package storage

import (
	"errors"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/config"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	rootDir      = "/irrecord"
	codesDir     = "/irrecord/codes"
	settingsFile = "/irrecord/settings.bin"
	tempSuffix   = ".tmp"
	codeSuffix   = ".bin"
)

// MaxCodes is the number of code slots.
const MaxCodes = 64

var (
	ErrCodeNotFound    = errors.New("code not found")
	ErrLogFull         = errors.New("code log full")
	ErrFlashFull       = errors.New("insufficient flash space")
	ErrInvalidCode     = errors.New("invalid code data")
	ErrInvalidSlot     = errors.New("invalid code slot")
	ErrVersionMismatch = errors.New("config version mismatch")
)

// Manager handles settings and code persistence using LittleFS.
type Manager struct {
	fs       *littlefs.LFS
	blockDev tinyfs.BlockDevice
	mounted  bool
}

// Stats provides information about storage usage.
type Stats struct {
	TotalSpace int64
	UsedSpace  int64
	FreeSpace  int64
	CodeCount  int
}

// New initializes the storage system with the given block device.
// It mounts the filesystem and performs boot-time cleanup.
// If format is true and mount fails, it will format the filesystem.
func New(blockDev tinyfs.BlockDevice, format bool) (*Manager, error) {
	lfs := littlefs.New(blockDev)

	// Configure LittleFS for RP2040 flash
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	err := lfs.Mount()
	if err != nil {
		if !format {
			return nil, err
		}
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		fs:       lfs,
		blockDev: blockDev,
		mounted:  true,
	}

	// Leftover temp files only waste space; keep going on error.
	_ = m.bootCleanup()

	needsWipe, err := m.checkVersion()
	if err != nil {
		// Unreadable settings are treated like a first boot
		needsWipe = false
	}

	if needsWipe {
		// Stored records use an older layout
		if err := m.wipeAll(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	if m.mounted {
		m.mounted = false
		return m.fs.Unmount()
	}
	return nil
}

// bootCleanup removes temporary files left over from interrupted writes.
func (m *Manager) bootCleanup() error {
	for _, dir := range []string{rootDir, codesDir} {
		entries, err := m.readDir(dir)
		if err != nil {
			if isNotExist(err) {
				return nil
			}
			return err
		}

		for _, entry := range entries {
			name := entry.Name()
			if strings.HasSuffix(name, tempSuffix) {
				m.fs.Remove(path.Join(dir, name))
			}
		}
	}
	return nil
}

// readDir reads the directory entries at the given path.
func (m *Manager) readDir(dirPath string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDir() {
		return nil, errors.New("not a directory")
	}

	return f.Readdir(-1)
}

// checkVersion reads the settings and reports whether stored data must be
// wiped because of a version mismatch.
func (m *Manager) checkVersion() (bool, error) {
	var s config.Settings
	if err := m.LoadSettings(&s); err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return s.Version != config.CurrentVersion, nil
}

// wipeAll removes settings and every stored code.
func (m *Manager) wipeAll() error {
	slots, err := m.ListCodes()
	if err == nil {
		for _, slot := range slots {
			m.DeleteCode(slot)
		}
	}

	m.fs.Remove(settingsFile)

	return nil
}

// ensureDirs creates the storage directories if they don't exist.
func (m *Manager) ensureDirs() error {
	if err := m.fs.Mkdir(rootDir, 0755); err != nil && !isExist(err) {
		return err
	}
	if err := m.fs.Mkdir(codesDir, 0755); err != nil && !isExist(err) {
		return err
	}
	return nil
}

// isExist checks if an error is "already exists".
// LittleFS errors don't always match os.IsExist, so we check the message too.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// isNotExist is the counterpart of isExist for missing entries.
func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "No directory entry")
}

// readFile reads exactly size bytes from p.
func (m *Manager) readFile(p string, size int) ([]byte, error) {
	f, err := m.fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.Read(buf)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, ErrInvalidCode
	}
	return buf, nil
}

// LoadSettings loads the device settings.
func (m *Manager) LoadSettings(s *config.Settings) error {
	buf, err := m.readFile(settingsFile, config.SettingsSize)
	if err != nil {
		return err
	}
	return s.UnmarshalBinary(buf)
}

// SaveSettings saves the device settings atomically.
func (m *Manager) SaveSettings(s *config.Settings) error {
	if err := m.ensureDirs(); err != nil {
		return err
	}

	s.Version = config.CurrentVersion

	data, err := s.MarshalBinary()
	if err != nil {
		return err
	}

	return m.atomicWrite(settingsFile, data)
}

// LoadCode loads the code stored in slot.
func (m *Manager) LoadCode(slot uint8, code *config.CodeRecord) error {
	if slot >= MaxCodes {
		return ErrInvalidSlot
	}

	buf, err := m.readFile(m.codePath(slot), config.CodeRecordSize)
	if err != nil {
		if isNotExist(err) {
			return ErrCodeNotFound
		}
		return err
	}

	return code.UnmarshalBinary(buf)
}

// SaveCode saves code to slot atomically, replacing any previous code.
func (m *Manager) SaveCode(slot uint8, code *config.CodeRecord) error {
	if slot >= MaxCodes {
		return ErrInvalidSlot
	}
	if err := m.ensureDirs(); err != nil {
		return err
	}

	code.Version = config.CurrentVersion

	data, err := code.MarshalBinary()
	if err != nil {
		return err
	}

	return m.atomicWrite(m.codePath(slot), data)
}

// AppendCode saves code in the lowest free slot and returns that slot.
func (m *Manager) AppendCode(code *config.CodeRecord) (uint8, error) {
	slots, err := m.ListCodes()
	if err != nil {
		return 0, err
	}

	var used [MaxCodes]bool
	for _, s := range slots {
		used[s] = true
	}

	for slot := range used {
		if used[slot] {
			continue
		}
		if !m.CanFitCode() {
			return 0, ErrFlashFull
		}
		return uint8(slot), m.SaveCode(uint8(slot), code)
	}
	return 0, ErrLogFull
}

// DeleteCode removes the code in slot.
func (m *Manager) DeleteCode(slot uint8) error {
	if err := m.fs.Remove(m.codePath(slot)); err != nil {
		if isNotExist(err) {
			return ErrCodeNotFound
		}
		return err
	}
	return nil
}

// CodeExists checks if a code is stored in slot.
func (m *Manager) CodeExists(slot uint8) bool {
	f, err := m.fs.Open(m.codePath(slot))
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// ListCodes returns the occupied code slots.
func (m *Manager) ListCodes() ([]uint8, error) {
	entries, err := m.readDir(codesDir)
	if err != nil {
		if isNotExist(err) {
			return []uint8{}, nil
		}
		return nil, err
	}

	var slots []uint8
	for _, entry := range entries {
		name := entry.Name()
		// "N.bin"
		if !strings.HasSuffix(name, codeSuffix) {
			continue
		}

		numStr := strings.TrimSuffix(name, codeSuffix)
		if slot, err := strconv.ParseUint(numStr, 10, 8); err == nil && slot < MaxCodes {
			slots = append(slots, uint8(slot))
		}
	}

	return slots, nil
}

// GetStats returns storage statistics.
func (m *Manager) GetStats() (*Stats, error) {
	codes, err := m.ListCodes()
	if err != nil {
		return nil, err
	}

	// LittleFS has no free-space call. Estimate:
	// each code is 44 bytes + ~32 bytes LittleFS overhead,
	// settings 16 + ~32, plus directory entries.
	used := int64(len(codes)*76 + 100)

	total := m.blockDev.Size()

	return &Stats{
		TotalSpace: total,
		UsedSpace:  used,
		FreeSpace:  total - used,
		CodeCount:  len(codes),
	}, nil
}

// CanFitCode estimates if a new code can be stored.
// This is a conservative estimate.
func (m *Manager) CanFitCode() bool {
	stats, err := m.GetStats()
	if err != nil {
		return false
	}
	return stats.FreeSpace > 512
}

// codePath returns the filesystem path for a code slot.
func (m *Manager) codePath(slot uint8) string {
	return path.Join(codesDir, strconv.Itoa(int(slot))+codeSuffix)
}

// atomicWrite writes data to a temporary file, syncs it, then renames.
// The original file is never in a partially written state.
func (m *Manager) atomicWrite(filepath string, data []byte) error {
	tempPath := filepath + tempSuffix

	m.fs.Remove(tempPath)

	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		m.fs.Remove(tempPath)
		return err
	}

	// Sync is only on *littlefs.File
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			m.fs.Remove(tempPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	// LittleFS rename doesn't replace
	m.fs.Remove(filepath)

	if err := m.fs.Rename(tempPath, filepath); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	return nil
}

// ForceWipe erases settings and all stored codes.
func (m *Manager) ForceWipe() error {
	return m.wipeAll()
}
