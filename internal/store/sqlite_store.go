package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lexohub/lexsync/internal/config"
	"github.com/lexohub/lexsync/internal/crypto"
	"github.com/lexohub/lexsync/internal/events"
	"github.com/lexohub/lexsync/internal/models"
)

// SQLiteStore implements Store on a local sqlite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger

	cipher  crypto.Cipher // nil means plaintext storage
	path    string
	maxSize int64

	mu              sync.Mutex
	decryptFailures int
}

// New opens (or creates) the local database, provisions the schema and
// derives the encryption key from the configured passphrase.
func New(cfg *config.StorageConfig, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", cfg.DatabasePath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		logger:  logger.WithField("component", "local_store"),
		path:    cfg.DatabasePath,
		maxSize: cfg.MaxDatabaseSize,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	if cfg.EncryptionKey != "" {
		key, err := s.deriveKey(cfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("derive key: %w", err)
		}
		cipher, err := crypto.NewAESGCM(key)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init cipher: %w", err)
		}
		s.cipher = cipher
	} else {
		s.logger.Warn("No encryption key configured, records stored in plaintext")
	}

	s.warnQuota()

	return s, nil
}

func (s *SQLiteStore) deriveKey(cfg *config.StorageConfig) ([]byte, error) {
	if cfg.KeySalt == "" {
		return crypto.DeriveKey(cfg.EncryptionKey), nil
	}

	// Remember the salt so a future config mismatch is detectable.
	if err := s.setMetadata("key_salt", []byte(cfg.KeySalt)); err != nil {
		return nil, err
	}
	return crypto.DeriveKeyPBKDF2(cfg.EncryptionKey, []byte(cfg.KeySalt))
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS records (
        id TEXT PRIMARY KEY,
        type TEXT NOT NULL,
        data BLOB NOT NULL,
        encrypted INTEGER NOT NULL DEFAULT 0,
        created_at INTEGER NOT NULL,
        updated_at INTEGER NOT NULL,
        sync_status TEXT NOT NULL DEFAULT 'pending',
        sync_retries INTEGER NOT NULL DEFAULT 0,
        last_sync_attempt INTEGER
    );

    CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
    CREATE INDEX IF NOT EXISTS idx_records_sync_status ON records(sync_status);

    CREATE TABLE IF NOT EXISTS sync_queue (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT NOT NULL UNIQUE,
        action TEXT NOT NULL,
        record_type TEXT NOT NULL,
        record_id TEXT NOT NULL,
        data BLOB,
        created_at INTEGER NOT NULL,
        retries INTEGER NOT NULL DEFAULT 0,
        last_error TEXT
    );

    CREATE INDEX IF NOT EXISTS idx_sync_queue_created ON sync_queue(created_at);
    CREATE INDEX IF NOT EXISTS idx_sync_queue_record_type ON sync_queue(record_type);

    CREATE TABLE IF NOT EXISTS metadata (
        key TEXT PRIMARY KEY,
        value BLOB
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return nil
}

// encodePayload serializes and optionally encrypts a record payload.
func (s *SQLiteStore) encodePayload(data map[string]interface{}, encrypt bool) ([]byte, bool, error) {
	plain, err := json.Marshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("marshal payload: %w", err)
	}

	if !encrypt || s.cipher == nil {
		return plain, false, nil
	}

	sealed, err := s.cipher.Encrypt(plain)
	if err != nil {
		return nil, false, fmt.Errorf("encrypt payload: %w", err)
	}
	return sealed, true, nil
}

// decodePayload reverses encodePayload.
func (s *SQLiteStore) decodePayload(id string, blob []byte, encrypted bool) (map[string]interface{}, error) {
	plain := blob
	if encrypted {
		if s.cipher == nil {
			return nil, &models.DecryptError{RecordID: id, Err: models.ErrEncryptionDisabled}
		}
		var err error
		plain, err = s.cipher.Decrypt(blob)
		if err != nil {
			return nil, &models.DecryptError{RecordID: id, Err: err}
		}
	}

	var data map[string]interface{}
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, &models.DecryptError{RecordID: id, Err: fmt.Errorf("corrupt payload: %w", err)}
	}
	return data, nil
}

// Store persists a record and its create queue entry in one transaction.
func (s *SQLiteStore) Store(recordType models.RecordType, data map[string]interface{}, encrypt bool) (string, error) {
	if !recordType.Valid() {
		return "", &models.StoreError{Op: "store", Err: fmt.Errorf("unknown record type %q", recordType)}
	}
	if err := s.checkQuota(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := data["id"].(string)
	if id == "" {
		id = uuid.NewString()
		// Carry the client-generated id in the payload so the remote
		// can echo it back on create.
		withID := make(map[string]interface{}, len(data)+1)
		for k, v := range data {
			withID[k] = v
		}
		withID["id"] = id
		data = withID
	}

	now := time.Now().UTC()
	createdAt := now
	if raw, ok := data["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			createdAt = t
		}
	}

	blob, encrypted, err := s.encodePayload(data, encrypt)
	if err != nil {
		return "", &models.StoreError{Op: "store", ID: id, Err: err}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", &models.StoreError{Op: "store", ID: id, Err: err}
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT OR REPLACE INTO records
            (id, type, data, encrypted, created_at, updated_at, sync_status, sync_retries)
        VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		id, string(recordType), blob, boolInt(encrypted),
		createdAt.UnixNano(), now.UnixNano(), string(models.StatusPending))
	if err != nil {
		return "", &models.StoreError{Op: "store", ID: id, Err: err}
	}

	if err := s.enqueueTx(tx, models.ActionCreate, recordType, id, data, now); err != nil {
		return "", &models.StoreError{Op: "store", ID: id, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return "", &models.StoreError{Op: "store", ID: id, Err: err}
	}

	s.logger.WithFields(map[string]interface{}{
		"record_id": id,
		"type":      recordType,
		"encrypted": encrypted,
	}).Debug("Stored record")

	return id, nil
}

// Get returns a single record, decrypted.
func (s *SQLiteStore) Get(id string) (*models.Record, error) {
	row := s.db.QueryRow(`
        SELECT id, type, data, encrypted, created_at, updated_at,
               sync_status, sync_retries, last_sync_attempt
        FROM records WHERE id = ?`, id)

	rec, blob, encrypted, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrRecordNotFound
		}
		return nil, &models.StoreError{Op: "get", ID: id, Err: err}
	}

	rec.Data, err = s.decodePayload(rec.ID, blob, encrypted)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetAll returns all records of a type. A record that cannot be
// decrypted is logged and skipped; it never aborts the batch.
func (s *SQLiteStore) GetAll(recordType models.RecordType) ([]*models.Record, error) {
	rows, err := s.db.Query(`
        SELECT id, type, data, encrypted, created_at, updated_at,
               sync_status, sync_retries, last_sync_attempt
        FROM records WHERE type = ? ORDER BY created_at`, string(recordType))
	if err != nil {
		return nil, &models.StoreError{Op: "get_all", Err: err}
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, blob, encrypted, err := scanRecord(rows)
		if err != nil {
			return nil, &models.StoreError{Op: "get_all", Err: err}
		}

		rec.Data, err = s.decodePayload(rec.ID, blob, encrypted)
		if err != nil {
			s.mu.Lock()
			s.decryptFailures++
			s.mu.Unlock()
			s.logger.WithError(err).WithField("record_id", rec.ID).
				Warn("Skipping undecryptable record")
			continue
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "get_all", Err: err}
	}
	return records, nil
}

// Update replaces the payload, preserves the encryption flag, resets
// sync status to pending and enqueues an update mutation. Like Store
// it is rejected above the storage quota; deletes and sync metadata
// changes are not.
func (s *SQLiteStore) Update(id string, data map[string]interface{}) error {
	if err := s.checkQuota(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var recordType string
	var wasEncrypted int
	err := s.db.QueryRow(`SELECT type, encrypted FROM records WHERE id = ?`, id).
		Scan(&recordType, &wasEncrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrRecordNotFound
	}
	if err != nil {
		return &models.StoreError{Op: "update", ID: id, Err: err}
	}

	blob, encrypted, err := s.encodePayload(data, wasEncrypted == 1)
	if err != nil {
		return &models.StoreError{Op: "update", ID: id, Err: err}
	}

	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return &models.StoreError{Op: "update", ID: id, Err: err}
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        UPDATE records
        SET data = ?, encrypted = ?, updated_at = ?, sync_status = ?
        WHERE id = ?`,
		blob, boolInt(encrypted), now.UnixNano(), string(models.StatusPending), id)
	if err != nil {
		return &models.StoreError{Op: "update", ID: id, Err: err}
	}

	if err := s.enqueueTx(tx, models.ActionUpdate, models.RecordType(recordType), id, data, now); err != nil {
		return &models.StoreError{Op: "update", ID: id, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &models.StoreError{Op: "update", ID: id, Err: err}
	}
	return nil
}

// Delete removes the record and enqueues a delete mutation carrying
// type and id, since the record itself is gone locally.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recordType string
	err := s.db.QueryRow(`SELECT type FROM records WHERE id = ?`, id).Scan(&recordType)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrRecordNotFound
	}
	if err != nil {
		return &models.StoreError{Op: "delete", ID: id, Err: err}
	}

	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return &models.StoreError{Op: "delete", ID: id, Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records WHERE id = ?`, id); err != nil {
		return &models.StoreError{Op: "delete", ID: id, Err: err}
	}

	if err := s.enqueueTx(tx, models.ActionDelete, models.RecordType(recordType), id, nil, now); err != nil {
		return &models.StoreError{Op: "delete", ID: id, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &models.StoreError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

// ApplyRemote overwrites a record with the remote copy without
// enqueueing a new mutation.
func (s *SQLiteStore) ApplyRemote(id string, data map[string]interface{}, remoteUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wasEncrypted int
	err := s.db.QueryRow(`SELECT encrypted FROM records WHERE id = ?`, id).Scan(&wasEncrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrRecordNotFound
	}
	if err != nil {
		return &models.StoreError{Op: "apply_remote", ID: id, Err: err}
	}

	blob, encrypted, err := s.encodePayload(data, wasEncrypted == 1)
	if err != nil {
		return &models.StoreError{Op: "apply_remote", ID: id, Err: err}
	}

	if remoteUpdatedAt.IsZero() {
		remoteUpdatedAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
        UPDATE records
        SET data = ?, encrypted = ?, updated_at = ?, sync_status = ?,
            sync_retries = 0, last_sync_attempt = ?
        WHERE id = ?`,
		blob, boolInt(encrypted), remoteUpdatedAt.UnixNano(),
		string(models.StatusSynced), time.Now().UTC().UnixNano(), id)
	if err != nil {
		return &models.StoreError{Op: "apply_remote", ID: id, Err: err}
	}
	return nil
}

// RemoveLocal deletes a record without touching the sync queue.
func (s *SQLiteStore) RemoveLocal(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM records WHERE id = ?`, id); err != nil {
		return &models.StoreError{Op: "remove_local", ID: id, Err: err}
	}
	return nil
}

// validTransitions for sync status. Local mutations move records back
// to pending through Store/Update, not here.
var validTransitions = map[models.SyncStatus][]models.SyncStatus{
	models.StatusPending: {models.StatusSyncing},
	// syncing may fall back to pending when a conflict defers the item
	// to manual resolution.
	models.StatusSyncing: {models.StatusSynced, models.StatusFailed, models.StatusPending},
	models.StatusFailed:  {models.StatusSyncing, models.StatusPending},
	models.StatusSynced:  {models.StatusSyncing},
}

func transitionAllowed(from, to models.SyncStatus) bool {
	if from == to {
		return true
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// UpdateSyncStatus adjusts sync metadata. A missing record is a no-op:
// it was already deleted locally and the queue entry will carry the
// delete to the remote side.
func (s *SQLiteStore) UpdateSyncStatus(id string, status models.SyncStatus, syncErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current string
	var retries int
	err := s.db.QueryRow(`SELECT sync_status, sync_retries FROM records WHERE id = ?`, id).
		Scan(&current, &retries)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return &models.StoreError{Op: "update_sync_status", ID: id, Err: err}
	}

	if !transitionAllowed(models.SyncStatus(current), status) {
		return &models.StoreError{
			Op: "update_sync_status", ID: id,
			Err: fmt.Errorf("illegal transition %s -> %s", current, status),
		}
	}

	switch status {
	case models.StatusFailed:
		retries++
	case models.StatusSynced:
		retries = 0
	}

	_, err = s.db.Exec(`
        UPDATE records
        SET sync_status = ?, sync_retries = ?, last_sync_attempt = ?
        WHERE id = ?`,
		string(status), retries, time.Now().UTC().UnixNano(), id)
	if err != nil {
		return &models.StoreError{Op: "update_sync_status", ID: id, Err: err}
	}

	if syncErr != "" {
		s.logger.WithFields(map[string]interface{}{
			"record_id": id,
			"status":    status,
			"retries":   retries,
		}).WithField("error", syncErr).Debug("Sync status updated")
	}
	return nil
}

// RemapID rewrites the record primary key and pending queue references.
func (s *SQLiteStore) RemapID(oldID, newID string) error {
	if oldID == newID || newID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return &models.StoreError{Op: "remap_id", ID: oldID, Err: err}
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE records SET id = ? WHERE id = ?`, newID, oldID)
	if err != nil {
		return &models.StoreError{Op: "remap_id", ID: oldID, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrRecordNotFound
	}

	if _, err := tx.Exec(`UPDATE sync_queue SET record_id = ? WHERE record_id = ?`, newID, oldID); err != nil {
		return &models.StoreError{Op: "remap_id", ID: oldID, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &models.StoreError{Op: "remap_id", ID: oldID, Err: err}
	}

	s.logger.WithFields(map[string]interface{}{
		"old_id": oldID,
		"new_id": newID,
	}).Info("Remapped record id")
	return nil
}

func (s *SQLiteStore) enqueueTx(tx *sql.Tx, action models.SyncAction, recordType models.RecordType, recordID string, data map[string]interface{}, now time.Time) error {
	var blob []byte
	if data != nil {
		var err error
		blob, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal queue payload: %w", err)
		}
	}

	_, err := tx.Exec(`
        INSERT INTO sync_queue (id, action, record_type, record_id, data, created_at, retries)
        VALUES (?, ?, ?, ?, ?, ?, 0)`,
		uuid.NewString(), string(action), string(recordType), recordID, blob, now.UnixNano())
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// SyncQueue returns all queue entries in insertion order.
func (s *SQLiteStore) SyncQueue() ([]*models.SyncQueueItem, error) {
	rows, err := s.db.Query(`
        SELECT id, action, record_type, record_id, data, created_at, retries, last_error
        FROM sync_queue ORDER BY seq`)
	if err != nil {
		return nil, &models.StoreError{Op: "sync_queue", Err: err}
	}
	defer rows.Close()

	var items []*models.SyncQueueItem
	for rows.Next() {
		var (
			item      models.SyncQueueItem
			blob      []byte
			createdAt int64
			lastError sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Action, &item.RecordType, &item.RecordID,
			&blob, &createdAt, &item.Retries, &lastError); err != nil {
			return nil, &models.StoreError{Op: "sync_queue", Err: err}
		}

		item.Timestamp = time.Unix(0, createdAt).UTC()
		item.LastError = lastError.String
		if len(blob) > 0 {
			if err := json.Unmarshal(blob, &item.Data); err != nil {
				return nil, &models.StoreError{Op: "sync_queue", ID: item.ID, Err: err}
			}
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "sync_queue", Err: err}
	}
	return items, nil
}

// RemoveQueueItem deletes a queue entry.
func (s *SQLiteStore) RemoveQueueItem(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return &models.StoreError{Op: "remove_queue_item", ID: id, Err: err}
	}
	return nil
}

// MarkQueueItemFailed records a failure on a queue entry.
func (s *SQLiteStore) MarkQueueItemFailed(id, reason string) error {
	_, err := s.db.Exec(`
        UPDATE sync_queue SET retries = retries + 1, last_error = ? WHERE id = ?`,
		reason, id)
	if err != nil {
		return &models.StoreError{Op: "mark_queue_failed", ID: id, Err: err}
	}
	return nil
}

// ResetFailedQueueItems zeroes retry counters on previously failed
// entries; entries that never failed are untouched.
func (s *SQLiteStore) ResetFailedQueueItems() (int, error) {
	res, err := s.db.Exec(`UPDATE sync_queue SET retries = 0, last_error = NULL WHERE retries > 0`)
	if err != nil {
		return 0, &models.StoreError{Op: "reset_failed", Err: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats returns derived counts. Purely read-only.
func (s *SQLiteStore) Stats() (*models.StorageStats, error) {
	stats := &models.StorageStats{
		RecordsByType: make(map[models.RecordType]int),
		QuotaBytes:    s.maxSize,
	}

	rows, err := s.db.Query(`SELECT type, COUNT(*) FROM records GROUP BY type`)
	if err != nil {
		return nil, &models.StoreError{Op: "stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, &models.StoreError{Op: "stats", Err: err}
		}
		stats.RecordsByType[models.RecordType(t)] = n
		stats.TotalRecords += n
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "stats", Err: err}
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&stats.PendingSync); err != nil {
		return nil, &models.StoreError{Op: "stats", Err: err}
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records WHERE sync_status = ?`,
		string(models.StatusFailed)).Scan(&stats.FailedSync); err != nil {
		return nil, &models.StoreError{Op: "stats", Err: err}
	}

	stats.DatabaseBytes = s.databaseSize()

	s.mu.Lock()
	stats.DecryptFailures = s.decryptFailures
	s.mu.Unlock()

	return stats, nil
}

// ClearAll wipes records, queue and metadata, leaving the store as
// freshly initialized.
func (s *SQLiteStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return &models.StoreError{Op: "clear_all", Err: err}
	}
	defer tx.Rollback()

	for _, table := range []string{"records", "sync_queue", "metadata"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return &models.StoreError{Op: "clear_all", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &models.StoreError{Op: "clear_all", Err: err}
	}

	s.decryptFailures = 0
	s.logger.Info("Cleared all local data")
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) setMetadata(key string, value []byte) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return &models.StoreError{Op: "set_metadata", ID: key, Err: err}
	}
	return nil
}

// databaseSize reports the on-disk size; in-memory databases report 0.
func (s *SQLiteStore) databaseSize() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// checkQuota rejects growing writes (Store, Update) above the
// configured limit and warns above 80% usage.
func (s *SQLiteStore) checkQuota() error {
	if s.maxSize <= 0 {
		return nil
	}

	size := s.databaseSize()
	if size >= s.maxSize {
		return fmt.Errorf("%w: %d of %d bytes used", models.ErrQuotaExceeded, size, s.maxSize)
	}
	if size*100 >= s.maxSize*80 {
		s.logger.WithFields(map[string]interface{}{
			"used_bytes":  size,
			"quota_bytes": s.maxSize,
		}).Warn("Storage quota running low")
	}
	return nil
}

func (s *SQLiteStore) warnQuota() {
	if s.maxSize <= 0 {
		return
	}
	if size := s.databaseSize(); size*100 >= s.maxSize*80 {
		s.logger.WithFields(map[string]interface{}{
			"used_bytes":  size,
			"quota_bytes": s.maxSize,
		}).Warn("Storage quota running low")
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(r rowScanner) (*models.Record, []byte, bool, error) {
	var (
		rec         models.Record
		blob        []byte
		encrypted   int
		createdAt   int64
		updatedAt   int64
		lastAttempt sql.NullInt64
	)

	err := r.Scan(&rec.ID, &rec.Type, &blob, &encrypted, &createdAt, &updatedAt,
		&rec.SyncStatus, &rec.SyncRetries, &lastAttempt)
	if err != nil {
		return nil, nil, false, err
	}

	rec.Encrypted = encrypted == 1
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if lastAttempt.Valid {
		rec.LastSyncAttempt = time.Unix(0, lastAttempt.Int64).UTC()
	}

	return &rec, blob, rec.Encrypted, nil
}
