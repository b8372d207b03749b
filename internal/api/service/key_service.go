// Package service provides business logic for the REST API.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/remiblancher/pqhybrid/internal/api/dto"
	"github.com/remiblancher/pqhybrid/internal/audit"
	"github.com/remiblancher/pqhybrid/internal/logging"
	"github.com/remiblancher/pqhybrid/internal/metrics"
	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

var (
	// ErrKeyNotFound indicates no key is stored under the requested id.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeystoreFull indicates the keystore holds max_keys keys.
	ErrKeystoreFull = errors.New("keystore is full")

	// ErrInvalidRequest wraps request decoding failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// Config configures a KeyService.
type Config struct {
	Registry         *crypto.Registry
	DefaultAlgorithm string
	MaxKeys          int
	Logger           *slog.Logger

	// Rand defaults to crypto/rand.Reader.
	Rand io.Reader
}

type storedKey struct {
	id      string
	key     *crypto.CompositeKey
	created time.Time
}

// KeyService holds composite keys in memory and runs operations on them.
//
// The store owns one reference to every key. Each operation takes its own
// reference for the duration of the call, so Delete never invalidates a
// key under an in-flight operation.
type KeyService struct {
	registry   *crypto.Registry
	defaultAlg string
	maxKeys    int
	logger     *slog.Logger
	rand       io.Reader

	mu   sync.RWMutex
	keys map[string]*storedKey
}

// NewKeyService creates a KeyService.
func NewKeyService(cfg Config) *KeyService {
	s := &KeyService{
		registry:   cfg.Registry,
		defaultAlg: cfg.DefaultAlgorithm,
		maxKeys:    cfg.MaxKeys,
		logger:     cfg.Logger,
		rand:       cfg.Rand,
		keys:       make(map[string]*storedKey),
	}
	if s.registry == nil {
		s.registry = crypto.DefaultRegistry()
	}
	if s.rand == nil {
		s.rand = rand.Reader
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

// AlgorithmInfo describes d for API responses.
func AlgorithmInfo(d *crypto.AlgorithmDescriptor) dto.AlgorithmInfo {
	typ := "signature"
	if d.IsKEM() {
		typ = "kem"
	}
	return dto.AlgorithmInfo{
		Name:           d.Name,
		OID:            d.OID.String(),
		Category:       d.Category.String(),
		Type:           typ,
		Hybrid:         d.IsHybrid(),
		SecurityLevel:  d.SecurityLevel,
		BitSecurity:    d.BitSecurity,
		PublicKeySize:  d.PublicKeyLen(),
		PrivateKeySize: d.PrivateKeyLen(),
		ReverseShare:   d.ReverseShare,
	}
}

// Algorithms lists every registered algorithm.
func (s *KeyService) Algorithms() *dto.AlgorithmListResponse {
	descs := s.registry.Descriptors()
	resp := &dto.AlgorithmListResponse{Algorithms: make([]dto.AlgorithmInfo, 0, len(descs))}
	for _, d := range descs {
		resp.Algorithms = append(resp.Algorithms, AlgorithmInfo(d))
	}
	return resp
}

// Count returns the number of stored keys.
func (s *KeyService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Generate creates and stores a new key.
func (s *KeyService) Generate(ctx context.Context, req *dto.KeyGenerateRequest) (*dto.KeyResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := req.Algorithm
	if name == "" {
		name = s.defaultAlg
	}

	start := time.Now()
	k, err := s.registry.Generate(s.rand, name)
	s.observe(metrics.OpGenerate, name, err, start)
	if err != nil {
		_ = audit.LogKeyGenerated("", name, err)
		return nil, err
	}

	entry, err := s.store(k)
	if err != nil {
		k.Free()
		return nil, err
	}
	if err := audit.LogKeyGenerated(entry.id, k.Algorithm().Name, nil); err != nil {
		s.remove(entry.id)
		return nil, err
	}
	s.logger.Info("key generated", "id", entry.id, "algorithm", k.Algorithm().Name)
	return s.describe(entry)
}

// Import parses a PEM or DER key and stores it.
func (s *KeyService) Import(ctx context.Context, req *dto.KeyImportRequest) (*dto.KeyResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := req.Key.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: key: %v", ErrInvalidRequest, err)
	}

	start := time.Now()
	var k *crypto.CompositeKey
	switch {
	case req.Key.Encoding == "pem":
		k, err = s.registry.DecodePEM(data)
	case req.Private:
		k, err = s.registry.ParsePKCS8PrivateKey(data)
	default:
		k, err = s.registry.ParsePKIXPublicKey(data)
	}
	alg := ""
	if k != nil {
		alg = k.Algorithm().Name
	}
	s.observe(metrics.OpImport, alg, err, start)
	if err != nil {
		_ = audit.LogKeyImported("", "", alg, req.Private, err)
		return nil, err
	}

	entry, err := s.store(k)
	if err != nil {
		k.Free()
		return nil, err
	}
	if err := audit.LogKeyImported(entry.id, "", alg, k.HasPrivate(), nil); err != nil {
		s.remove(entry.id)
		return nil, err
	}
	s.logger.Info("key imported", "id", entry.id, "algorithm", alg, "private", k.HasPrivate())
	return s.describe(entry)
}

// Get describes a stored key.
func (s *KeyService) Get(ctx context.Context, id string) (*dto.KeyResponse, error) {
	s.mu.RLock()
	entry, ok := s.keys[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return s.describe(entry)
}

// List describes every stored key, oldest first.
func (s *KeyService) List(ctx context.Context) (*dto.KeyListResponse, error) {
	s.mu.RLock()
	entries := make([]*storedKey, 0, len(s.keys))
	for _, e := range s.keys {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].created.Equal(entries[j].created) {
			return entries[i].id < entries[j].id
		}
		return entries[i].created.Before(entries[j].created)
	})

	resp := &dto.KeyListResponse{Keys: make([]dto.KeyResponse, 0, len(entries))}
	for _, e := range entries {
		kr, err := s.describe(e)
		if errors.Is(err, crypto.ErrKeyReleased) {
			continue // deleted concurrently
		}
		if err != nil {
			return nil, err
		}
		resp.Keys = append(resp.Keys, *kr)
	}
	return resp, nil
}

// Delete removes a key from the store and drops the store's reference.
func (s *KeyService) Delete(ctx context.Context, id string) error {
	entry := s.remove(id)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	s.logger.Info("key deleted", "id", id)
	return nil
}

// Close releases every stored key.
func (s *KeyService) Close() {
	s.mu.Lock()
	entries := s.keys
	s.keys = make(map[string]*storedKey)
	s.mu.Unlock()

	for id, e := range entries {
		s.release(id, e)
	}
	metrics.SetKeysLoaded(0)
}

// acquire returns the key stored under id with an extra reference that the
// caller must drop with Free.
func (s *KeyService) acquire(ctx context.Context, id string) (*crypto.CompositeKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	if err := entry.key.UpRef(); err != nil {
		return nil, err
	}
	return entry.key, nil
}

func (s *KeyService) store(k *crypto.CompositeKey) (*storedKey, error) {
	entry := &storedKey{id: uuid.NewString(), key: k, created: time.Now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.keys) >= s.maxKeys {
		return nil, fmt.Errorf("%w (%d keys)", ErrKeystoreFull, s.maxKeys)
	}
	s.keys[entry.id] = entry
	metrics.SetKeysLoaded(len(s.keys))
	return entry, nil
}

func (s *KeyService) remove(id string) *storedKey {
	s.mu.Lock()
	entry, ok := s.keys[id]
	if ok {
		delete(s.keys, id)
	}
	n := len(s.keys)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.SetKeysLoaded(n)
	s.release(id, entry)
	return entry
}

func (s *KeyService) release(id string, e *storedKey) {
	alg := e.key.Algorithm().Name
	e.key.Free()
	metrics.RecordOperation(metrics.OpRelease, alg, "", 0)
	if err := audit.LogKeyReleased(id, alg); err != nil {
		s.logger.Error("audit failure", "event", audit.EventKeyReleased, "error", err)
	}
}

func (s *KeyService) describe(e *storedKey) (*dto.KeyResponse, error) {
	if err := e.key.UpRef(); err != nil {
		return nil, err
	}
	defer e.key.Free()

	pub, err := crypto.EncodePEM(e.key, false)
	if err != nil {
		return nil, err
	}
	return &dto.KeyResponse{
		ID:         e.id,
		Algorithm:  AlgorithmInfo(e.key.Algorithm()),
		HasPrivate: e.key.HasPrivate(),
		PublicKey:  dto.PEM(pub),
		CreatedAt:  e.created.Format(time.RFC3339),
	}, nil
}

func (s *KeyService) observe(op, alg string, err error, start time.Time) {
	reason, component := audit.Classify(err)
	metrics.RecordOperation(op, alg, reason, time.Since(start))
	if err != nil {
		s.logger.Debug("operation failed", "operation", op, "algorithm", alg,
			"reason", reason, "component", component, "error", err)
	}
}

func decodeField(name string, b *dto.BinaryData) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	data, err := b.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRequest, name, err)
	}
	return data, nil
}
