// Package vault is the encrypted journal store: passphrase unlock against a
// per-vault salt, one encrypted blob per entry version, and a sqlite metadata
// index that is sealed to disk as a whole, so that entry existence, dates,
// checksums, and chunk counts are all unreadable without the passphrase.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/cryptox"
	"github.com/dmitrijs2005/mindvault/internal/dbx"
	"github.com/dmitrijs2005/mindvault/internal/filex"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/session"
	"github.com/dmitrijs2005/mindvault/internal/vault/chunks"
	"github.com/dmitrijs2005/mindvault/internal/vault/entries"
	"github.com/dmitrijs2005/mindvault/internal/vault/metadata"
)

const (
	indexFileName = "index.db"
	saltFileName  = "vault.salt"
	blobDirName   = "entries"
	saltSize      = 32

	formatVersion = "1"
)

// shmDir is the memory-backed tmpfs preferred for the decrypted index
// working copy. Overridable in tests.
var shmDir = "/dev/shm"

// ErrRefreshSuperseded is returned by ReplaceChunks when the entry's content
// changed after the refresh read it. The refresh is aborted; the entry stays
// marked as needing embedding, so a retry reprocesses cleanly.
var ErrRefreshSuperseded = errors.New("entry content changed during refresh")

// Vault is the encrypted store rooted at a single directory:
//
//	<root>/vault.salt                    KDF salt (public)
//	<root>/index.db                      metadata index, sealed as one blob
//	<root>/entries/2024/06/15-ab12cd34.bin  one sealed blob per entry version
//
// The sqlite handle operates on a decrypted 0600 working copy (on tmpfs when
// available) created at Unlock; every committed mutation re-seals the working
// copy back to index.db.
type Vault struct {
	root     string
	log      logging.Logger
	db       *sql.DB
	workPath string
}

// Open prepares the vault directory. No key material is needed yet; the
// index stays sealed until Unlock.
func Open(ctx context.Context, root string, log logging.Logger) (*Vault, error) {
	if _, err := filex.EnsureDir(root); err != nil {
		return nil, err
	}
	return &Vault{root: root, log: log}, nil
}

// Close releases the index handle and wipes the working copy.
func (v *Vault) Close() error {
	return v.closeIndex()
}

// Unlock derives the key set from the passphrase and the stored per-vault
// salt, then verifies it by opening the sealed index: a wrong key cannot
// authenticate the blob, so decryption success is the passphrase check.
// A brand-new vault (no salt yet) is initialized on first unlock. On
// mismatch the derived keys are wiped and common.ErrAuthentication is
// returned; retry policy belongs to the caller.
func (v *Vault) Unlock(ctx context.Context, passphrase []byte, timeout time.Duration) (*session.Session, error) {
	if err := v.closeIndex(); err != nil {
		return nil, err
	}

	salt, err := os.ReadFile(filepath.Join(v.root, saltFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return v.initialize(ctx, passphrase, timeout)
		}
		return nil, fmt.Errorf("read salt: %w", err)
	}

	keys := cryptox.DeriveKeys(passphrase, salt)

	sealed, err := os.ReadFile(filepath.Join(v.root, indexFileName))
	if err != nil {
		keys.Wipe()
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: index missing", common.ErrStorageIntegrity)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	plain, err := cryptox.Open(sealed, keys.EncKey)
	if err != nil {
		keys.Wipe()
		return nil, err
	}

	if err := v.openWorking(ctx, plain); err != nil {
		keys.Wipe()
		return nil, err
	}

	ver, err := metadata.NewSQLiteRepository(v.db).Get(ctx, metadata.KeyFormatVersion)
	if err != nil || string(ver) != formatVersion {
		v.closeIndex()
		keys.Wipe()
		return nil, fmt.Errorf("%w: unrecognized index format", common.ErrStorageIntegrity)
	}

	v.log.Debug(ctx, "vault unlocked")
	return session.New(keys, timeout), nil
}

// initialize sets up salt, a fresh index, and its sealed on-disk form for a
// new vault.
func (v *Vault) initialize(ctx context.Context, passphrase []byte, timeout time.Duration) (*session.Session, error) {
	salt := common.GenerateRandByteArray(saltSize)
	if err := os.WriteFile(filepath.Join(v.root, saltFileName), salt, 0o600); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	keys := cryptox.DeriveKeys(passphrase, salt)

	if err := v.openWorking(ctx, nil); err != nil {
		keys.Wipe()
		return nil, err
	}

	err := dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Set(ctx, metadata.KeyFormatVersion, []byte(formatVersion))
	})
	if err == nil {
		err = v.persistIndex(ctx, keys)
	}
	if err != nil {
		v.closeIndex()
		keys.Wipe()
		return nil, fmt.Errorf("initialize vault: %w", err)
	}

	v.log.Info(ctx, "new vault initialized", "root", v.root)
	return session.New(keys, timeout), nil
}

// ReadEntry decrypts the entry for date. Returns common.ErrorNotFound if no
// entry exists, common.ErrAuthentication if the blob fails to authenticate,
// and common.ErrStorageIntegrity if the decrypted content does not match the
// stored checksum.
func (v *Vault) ReadEntry(ctx context.Context, sess *session.Session, date string) (*Entry, error) {
	if err := sess.Use(); err != nil {
		return nil, err
	}
	keys := sess.Keys()

	rec, err := v.getRecord(ctx, v.db, keys, date)
	if err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(filepath.Join(v.root, rec.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: blob missing for %s", common.ErrStorageIntegrity, date)
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}

	plaintext, err := cryptox.Open(blob, keys.EncKey)
	if err != nil {
		return nil, err
	}

	if cryptox.Checksum(plaintext) != rec.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch for %s", common.ErrStorageIntegrity, date)
	}

	return &Entry{Record: *rec, Text: string(plaintext)}, nil
}

// WriteEntry encrypts text and commits the new version: the blob goes to a
// content-addressed path of its own, then the sealed record (new checksum,
// word count, timestamp, new path) is stored in one transaction and the
// index re-sealed to disk. Because no blob is ever overwritten in place, a
// crash at any point leaves the committed record and the blob it points to
// consistent; the superseded blob is removed only after the commit is
// durable.
//
// baseChecksum is the checksum the caller last read for this date ("" for a
// blind write). If the stored checksum has moved past it, the write still
// proceeds — last write wins — but WriteResult.Conflict is set so the caller
// can warn the user.
//
// Saving byte-identical content is a no-op: no blob write, no record update,
// and the entry is not marked for re-embedding.
func (v *Vault) WriteEntry(ctx context.Context, sess *session.Session, date, text, baseChecksum string) (*WriteResult, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	if err := sess.Use(); err != nil {
		return nil, err
	}
	keys := sess.Keys()

	newSum := cryptox.Checksum([]byte(text))
	wordCount := len(strings.Fields(text))

	existing, err := v.getRecord(ctx, v.db, keys, date)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	conflict := baseChecksum != "" && existing != nil && existing.Checksum != baseChecksum

	if existing != nil && existing.Checksum == newSum {
		return &WriteResult{Checksum: newSum, WordCount: existing.WordCount, Conflict: conflict}, nil
	}

	sealed, err := cryptox.Seal([]byte(text), keys.EncKey)
	if err != nil {
		return nil, err
	}

	relPath := blobPath(date, newSum)
	absPath := filepath.Join(v.root, relPath)

	if err := filex.AtomicWrite(absPath, sealed, 0o600); err != nil {
		return nil, err
	}

	rec := EntryRecord{
		Date:      date,
		Path:      relPath,
		Checksum:  newSum,
		WordCount: wordCount,
		UpdatedAt: time.Now().UTC(),
	}
	if existing != nil {
		// Embedding markers survive the save; the checksum difference is
		// what flags the entry for re-embedding.
		rec.EmbeddedAt = existing.EmbeddedAt
		rec.EmbeddedChecksum = existing.EmbeddedChecksum
	}

	envelope, err := cryptox.SealJSON(rec, keys.EncKey)
	if err != nil {
		return nil, err
	}

	digest := cryptox.DateDigest(keys, date)
	err = dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return entries.NewSQLiteRepository(tx).Upsert(ctx, &entries.Row{Digest: digest, Envelope: envelope})
	})
	if err != nil {
		// The old record and its blob were never touched.
		os.Remove(absPath)
		return nil, fmt.Errorf("commit entry record: %w", err)
	}

	if err := v.persistIndex(ctx, keys); err != nil {
		// The sealed index on disk still points at the old blob, which is
		// still present, so a restart sees the pre-write state.
		return nil, err
	}

	if existing != nil {
		if err := os.Remove(filepath.Join(v.root, existing.Path)); err != nil && !os.IsNotExist(err) {
			v.log.Warn(ctx, "stale blob removal failed", "date", date, "err", err)
		}
	}

	v.log.Debug(ctx, "entry saved", "date", date, "words", wordCount, "conflict", conflict)
	return &WriteResult{Checksum: newSum, WordCount: wordCount, Changed: true, Conflict: conflict}, nil
}

// DeleteEntry removes the entry for date together with its chunk set and
// on-disk blob.
func (v *Vault) DeleteEntry(ctx context.Context, sess *session.Session, date string) error {
	if err := sess.Use(); err != nil {
		return err
	}
	keys := sess.Keys()

	rec, err := v.getRecord(ctx, v.db, keys, date)
	if err != nil {
		return err
	}

	digest := cryptox.DateDigest(keys, date)
	err = dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := chunks.NewSQLiteRepository(tx).DeleteByEntry(ctx, digest); err != nil {
			return err
		}
		return entries.NewSQLiteRepository(tx).Delete(ctx, digest)
	})
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	if err := v.persistIndex(ctx, keys); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(v.root, rec.Path)); err != nil && !os.IsNotExist(err) {
		v.log.Warn(ctx, "blob removal failed", "date", date, "err", err)
	}
	return nil
}

// ListEntries returns the decrypted records of all entries, ordered by date.
func (v *Vault) ListEntries(ctx context.Context, sess *session.Session) ([]EntryRecord, error) {
	if err := sess.Use(); err != nil {
		return nil, err
	}
	keys := sess.Keys()

	rows, err := entries.NewSQLiteRepository(v.db).All(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]EntryRecord, 0, len(rows))
	for _, row := range rows {
		var rec EntryRecord
		if err := cryptox.OpenJSON(row.Envelope, keys.EncKey, &rec); err != nil {
			return nil, fmt.Errorf("open entry envelope: %w", err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}

// PendingEmbedding returns records whose chunks are missing or stale.
func (v *Vault) PendingEmbedding(ctx context.Context, sess *session.Session) ([]EntryRecord, error) {
	records, err := v.ListEntries(ctx, sess)
	if err != nil {
		return nil, err
	}

	pending := records[:0]
	for _, rec := range records {
		if rec.NeedsEmbedding() {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// ReplaceChunks discards every stored chunk of the entry and installs the
// new set, marking the entry as embedded at contentChecksum, all in a single
// transaction. If the entry's checksum no longer equals contentChecksum the
// refresh is aborted with ErrRefreshSuperseded and nothing changes, so no
// committed chunk can ever reference a checksum that is not its parent
// entry's current one.
func (v *Vault) ReplaceChunks(ctx context.Context, sess *session.Session, date, contentChecksum string, recs []ChunkRecord) error {
	if err := sess.Use(); err != nil {
		return err
	}
	keys := sess.Keys()
	digest := cryptox.DateDigest(keys, date)

	err := dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entryRepo := entries.NewSQLiteRepository(tx)

		row, err := entryRepo.Get(ctx, digest)
		if err != nil {
			return err
		}

		var rec EntryRecord
		if err := cryptox.OpenJSON(row.Envelope, keys.EncKey, &rec); err != nil {
			return fmt.Errorf("open entry envelope: %w", err)
		}
		if rec.Checksum != contentChecksum {
			return ErrRefreshSuperseded
		}

		chunkRepo := chunks.NewSQLiteRepository(tx)
		if err := chunkRepo.DeleteByEntry(ctx, digest); err != nil {
			return err
		}
		for i := range recs {
			envelope, err := cryptox.SealJSON(recs[i], keys.EncKey)
			if err != nil {
				return err
			}
			if err := chunkRepo.Insert(ctx, &chunks.Row{EntryDigest: digest, Envelope: envelope}); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		rec.EmbeddedAt = &now
		rec.EmbeddedChecksum = contentChecksum

		envelope, err := cryptox.SealJSON(rec, keys.EncKey)
		if err != nil {
			return err
		}
		return entryRepo.Upsert(ctx, &entries.Row{Digest: digest, Envelope: envelope})
	})
	if err != nil {
		return err
	}
	return v.persistIndex(ctx, keys)
}

// Chunks returns the decrypted records of every stored chunk.
func (v *Vault) Chunks(ctx context.Context, sess *session.Session) ([]ChunkRecord, error) {
	if err := sess.Use(); err != nil {
		return nil, err
	}
	keys := sess.Keys()

	rows, err := chunks.NewSQLiteRepository(v.db).All(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]ChunkRecord, 0, len(rows))
	for _, row := range rows {
		var rec ChunkRecord
		if err := cryptox.OpenJSON(row.Envelope, keys.EncKey, &rec); err != nil {
			return nil, fmt.Errorf("open chunk envelope: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (v *Vault) getRecord(ctx context.Context, db dbx.DBTX, keys *cryptox.KeyMaterial, date string) (*EntryRecord, error) {
	digest := cryptox.DateDigest(keys, date)
	row, err := entries.NewSQLiteRepository(db).Get(ctx, digest)
	if err != nil {
		return nil, err
	}

	var rec EntryRecord
	if err := cryptox.OpenJSON(row.Envelope, keys.EncKey, &rec); err != nil {
		return nil, fmt.Errorf("open entry envelope: %w", err)
	}
	return &rec, nil
}

// openWorking creates the decrypted working copy (owner-only, created empty
// before any index bytes touch it), loads plain into it, and opens the
// sqlite handle with migrations applied.
func (v *Vault) openWorking(ctx context.Context, plain []byte) error {
	dir := os.TempDir()
	if info, err := os.Stat(shmDir); err == nil && info.IsDir() {
		dir = shmDir
	}

	suffix, err := common.MakeRandHexString(8)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "mindvault-idx-"+suffix+".db")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create working index: %w", err)
	}
	if _, err := f.Write(plain); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write working index: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close working index: %w", err)
	}

	db, err := initDatabase(ctx, path)
	if err != nil {
		os.Remove(path)
		return err
	}

	v.db = db
	v.workPath = path
	return nil
}

// persistIndex seals the working copy back to index.db. Called after every
// committed mutation, so the on-disk index always reflects the latest
// durable state.
func (v *Vault) persistIndex(ctx context.Context, keys *cryptox.KeyMaterial) error {
	data, err := os.ReadFile(v.workPath)
	if err != nil {
		return fmt.Errorf("read working index: %w", err)
	}
	sealed, err := cryptox.Seal(data, keys.EncKey)
	if err != nil {
		return err
	}
	return filex.AtomicWrite(filepath.Join(v.root, indexFileName), sealed, 0o600)
}

// closeIndex closes the sqlite handle and wipes the working copy. Idempotent.
func (v *Vault) closeIndex() error {
	var err error
	if v.db != nil {
		err = v.db.Close()
		v.db = nil
	}
	if v.workPath != "" {
		wipeAndRemove(v.workPath)
		for _, suffix := range []string{"-journal", "-wal", "-shm"} {
			os.Remove(v.workPath + suffix)
		}
		v.workPath = ""
	}
	return err
}

// wipeAndRemove overwrites the file with zero bytes before removal.
// Best-effort hygiene, not a forensic guarantee.
func wipeAndRemove(path string) {
	if info, err := os.Stat(path); err == nil {
		zeros := make([]byte, info.Size())
		_ = os.WriteFile(path, zeros, 0o600)
	}
	_ = os.Remove(path)
}

// blobPath returns the relative blob location for one entry version, split
// by year/month to bound directory fan-out. The checksum fragment gives each
// version its own file, so saving never overwrites the blob the committed
// record still points to.
func blobPath(date, checksum string) string {
	// date is validated as YYYY-MM-DD and checksum is a sha256 hex string
	// before this point.
	name := fmt.Sprintf("%s-%s.bin", date[8:], checksum[:8])
	return filepath.Join(blobDirName, date[:4], date[5:7], name)
}
