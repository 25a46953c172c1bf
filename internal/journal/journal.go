// Package journal persists upload checkpoints in an embedded BadgerDB store.
//
// Chunked uploads checkpoint their progress after every accepted byte range.
// When the process dies mid-transfer the journal still holds the session URL
// and the byte offset, so the pending transfer can be listed, resumed or
// cleaned up on the next run. Completed uploads delete their entry.
//
// Thread safety: BadgerDB transactions provide isolation; the Journal itself
// holds no mutable state beyond the database handle and is safe for
// concurrent use.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/havenworks/docvault/internal/logger"
	"github.com/havenworks/docvault/pkg/storage"
)

// keyPrefix namespaces checkpoint entries inside the database.
const keyPrefix = "upload/"

// keySeparator joins the key fields. 0x00 cannot appear in sanitized paths
// or names, so keys parse unambiguously.
const keySeparator = "\x00"

// Config holds journal settings.
type Config struct {
	// Path is the directory for the BadgerDB files.
	Path string

	// InMemory keeps the journal in memory only. Used in tests; checkpoints
	// do not survive a restart in this mode.
	InMemory bool
}

// Journal is a BadgerDB-backed checkpoint store. It implements
// storage.CheckpointJournal.
type Journal struct {
	db *badger.DB
}

// Open opens (or creates) the journal database.
func Open(ctx context.Context, cfg Config) (*Journal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("journal path is required")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload journal at %s: %w", cfg.Path, err)
	}

	logger.Debug("upload journal opened at %s", cfg.Path)
	return &Journal{db: db}, nil
}

// Close releases the database. Pending entries stay on disk.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Save writes or overwrites the checkpoint for an in-flight upload.
func (j *Journal) Save(ctx context.Context, cp storage.UploadCheckpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey(cp.ContainerID, cp.Path, cp.Name), value)
	})
}

// Delete removes the checkpoint for a completed or abandoned upload.
// Deleting an absent entry is not an error.
func (j *Journal) Delete(ctx context.Context, containerID, path, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(checkpointKey(containerID, path, name))
	})
}

// Get returns the checkpoint for one upload, or false when none is recorded.
func (j *Journal) Get(ctx context.Context, containerID, path, name string) (storage.UploadCheckpoint, bool, error) {
	var cp storage.UploadCheckpoint
	if err := ctx.Err(); err != nil {
		return cp, false, err
	}

	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey(containerID, path, name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cp)
		})
	})
	if err == badger.ErrKeyNotFound {
		return cp, false, nil
	}
	if err != nil {
		return cp, false, err
	}
	return cp, true, nil
}

// Pending lists all recorded checkpoints, i.e. uploads that started but never
// completed.
func (j *Journal) Pending(ctx context.Context) ([]storage.UploadCheckpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []storage.UploadCheckpoint
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var cp storage.UploadCheckpoint
				if err := json.Unmarshal(val, &cp); err != nil {
					return err
				}
				out = append(out, cp)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkpointKey(containerID, path, name string) []byte {
	var b bytes.Buffer
	b.WriteString(keyPrefix)
	b.WriteString(containerID)
	b.WriteString(keySeparator)
	b.WriteString(path)
	b.WriteString(keySeparator)
	b.WriteString(name)
	return b.Bytes()
}
