package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	sha256 "github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/hkdf"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
)

const (
	// keyBytes 生成密钥的随机字节数
	keyBytes = 32

	fingerprintSalt = "peerctl/keystore/v1"
)

// Fingerprint 密钥的 HKDF-SHA256 指纹，密钥库只按指纹比较
func Fingerprint(key string) []byte {
	out := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, []byte(key), []byte(fingerprintSalt), nil)
	if _, err := io.ReadFull(r, out); err != nil {
		// 输出长度远小于 HKDF 上限
		panic(err)
	}
	return out
}

// GenerateKey 生成 base58 编码的随机密钥
func GenerateKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate key: %w", err)
	}
	return base58.Encode(buf), nil
}

// ============================================================================
//                              MemoryKeyStore
// ============================================================================

type keyEntry struct {
	fp     []byte
	record interfaces.KeyRecord
}

// MemoryKeyStore 内存密钥库
type MemoryKeyStore struct {
	mu      sync.RWMutex
	entries []keyEntry
	clock   clock.Clock
}

var _ interfaces.KeyStore = (*MemoryKeyStore)(nil)

// NewMemoryKeyStore 创建内存密钥库并预置密钥
func NewMemoryKeyStore(keys ...string) *MemoryKeyStore {
	s := &MemoryKeyStore{clock: clock.New()}
	for _, k := range keys {
		s.Add(k, "")
	}
	return s
}

// Add 添加密钥，已存在时返回已有记录
func (s *MemoryKeyStore) Add(key, label string) *interfaces.KeyRecord {
	fp := Fingerprint(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.find(fp); e != nil {
		rec := e.record
		return &rec
	}
	rec := interfaces.KeyRecord{
		ID:        uuid.NewString(),
		Key:       key,
		Label:     label,
		CreatedAt: s.clock.Now().UTC(),
	}
	s.entries = append(s.entries, keyEntry{fp: fp, record: rec})
	return &rec
}

// find 逐条比较指纹，调用方持锁
func (s *MemoryKeyStore) find(fp []byte) *keyEntry {
	var found *keyEntry
	for i := range s.entries {
		if hmac.Equal(s.entries[i].fp, fp) && found == nil {
			found = &s.entries[i]
		}
	}
	return found
}

// IsValid 实现 interfaces.KeyStore
func (s *MemoryKeyStore) IsValid(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Get 实现 interfaces.KeyStore
func (s *MemoryKeyStore) Get(key string) (*interfaces.KeyRecord, bool) {
	if key == "" {
		return nil, false
	}
	fp := Fingerprint(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.find(fp)
	if e == nil {
		return nil, false
	}
	rec := e.record
	return &rec, true
}

// New 实现 interfaces.KeyStore
func (s *MemoryKeyStore) New() (*interfaces.KeyRecord, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	return s.Add(key, ""), nil
}

// Reload 实现 interfaces.KeyStore，内存密钥库无需重新加载
func (s *MemoryKeyStore) Reload() error {
	return nil
}

// Remove 按记录 ID 删除
func (s *MemoryKeyStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].record.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrKeyNotFound, id)
}

// Records 全部记录，按创建时间排序
func (s *MemoryKeyStore) Records() []interfaces.KeyRecord {
	s.mu.RLock()
	out := make([]interfaces.KeyRecord, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.record
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryKeyStore) replace(records []interfaces.KeyRecord) {
	entries := make([]keyEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, keyEntry{fp: Fingerprint(r.Key), record: r})
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// ============================================================================
//                              FileKeyStore
// ============================================================================

// keyFile 密钥库文件格式
type keyFile struct {
	Keys []interfaces.KeyRecord `json:"keys"`
}

// FileKeyStore 持久化到 JSON 文件的密钥库
//
// New 与 AddKey 写回文件，Reload 重新读取文件。
type FileKeyStore struct {
	path   string
	fileMu sync.Mutex
	mem    *MemoryKeyStore
}

var _ interfaces.KeyStore = (*FileKeyStore)(nil)

// OpenFileKeyStore 打开密钥库文件，文件不存在时视为空库
func OpenFileKeyStore(path string) (*FileKeyStore, error) {
	s := &FileKeyStore{path: path, mem: NewMemoryKeyStore()}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path 文件路径
func (s *FileKeyStore) Path() string {
	return s.path
}

// IsValid 实现 interfaces.KeyStore
func (s *FileKeyStore) IsValid(key string) bool {
	return s.mem.IsValid(key)
}

// Get 实现 interfaces.KeyStore
func (s *FileKeyStore) Get(key string) (*interfaces.KeyRecord, bool) {
	return s.mem.Get(key)
}

// New 实现 interfaces.KeyStore：生成密钥并写回文件
func (s *FileKeyStore) New() (*interfaces.KeyRecord, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	return s.AddKey(key, "")
}

// AddKey 添加指定密钥并写回文件
func (s *FileKeyStore) AddKey(key, label string) (*interfaces.KeyRecord, error) {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	rec := s.mem.Add(key, label)
	if err := s.save(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Records 全部记录
func (s *FileKeyStore) Records() []interfaces.KeyRecord {
	return s.mem.Records()
}

// Reload 实现 interfaces.KeyStore
func (s *FileKeyStore) Reload() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mem.replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: read key store: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return fmt.Errorf("auth: parse key store %s: %w", s.path, err)
	}
	s.mem.replace(kf.Keys)
	logger.Debug("密钥库已加载", "path", s.path, "keys", len(kf.Keys))
	return nil
}

// save 先写临时文件再重命名，调用方持有 fileMu
func (s *FileKeyStore) save() error {
	data, err := json.MarshalIndent(keyFile{Keys: s.mem.Records()}, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: encode key store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("auth: create key store dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("auth: write key store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("auth: write key store: %w", err)
	}
	return nil
}
