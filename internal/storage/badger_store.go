package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/flashzynex-dot/vps-bot/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store interface (kept minimal, allows swapping implementations).
type Store interface {
	SaveVPS(ctx context.Context, v *models.VPS) error
	GetVPS(ctx context.Context, ownerID string) (*models.VPS, error)
	ListVPS(ctx context.Context) ([]*models.VPS, error)
	// NextID hands out a monotonically increasing id counter value,
	// starting at 1. Values survive restarts.
	NextID(ctx context.Context) (uint64, error)
	Close() error
}

// BadgerStore implements Store with Badger DB. Records are keyed by
// owner id so the one-record-per-owner invariant holds at the storage
// layer too.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewBadgerStore(path string) (Store, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil                         // badger's own logs drown out ours
	opts = opts.WithValueLogFileSize(1 << 20) // smaller value log for local dev
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence([]byte("seq:vps-id"), 16)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

const vpsPrefix = "vps:owner:"

func vpsKey(ownerID string) []byte {
	return []byte(vpsPrefix + ownerID)
}

func (s *BadgerStore) SaveVPS(ctx context.Context, v *models.VPS) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return txn.Set(vpsKey(v.OwnerID), data)
	})
}

func (s *BadgerStore) GetVPS(ctx context.Context, ownerID string) (*models.VPS, error) {
	var out models.VPS
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(vpsKey(ownerID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BadgerStore) ListVPS(ctx context.Context) ([]*models.VPS, error) {
	var out []*models.VPS
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(vpsPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v models.VPS
			err := it.Item().Value(func(data []byte) error {
				return json.Unmarshal(data, &v)
			})
			if err != nil {
				return err
			}
			out = append(out, &v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) NextID(ctx context.Context) (uint64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	// badger sequences start at zero; ids are 1-based.
	return n + 1, nil
}
