package ttscache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/internal/wav"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrInconsistent reports a cache entry whose index row and artifact no
// longer agree. This is a broken invariant, not an external failure, and
// must abort the run.
var ErrInconsistent = errors.New("cache entry is inconsistent")

// Store is the on-disk content-addressed synthesis cache. Artifacts live
// under <dir>/<language>/<voice>/<key>.wav; the index is a sqlite database
// in the same directory. Entries are immutable once written and survive
// process restarts; both compilation entry points share one store.
type Store struct {
	dir     string
	db      *sql.DB
	lock    *flock.Flock
	synth   capability.Synthesizer
	runtime config.RuntimeConfig
	flight  singleflight.Group
}

// Open prepares the cache directory, takes the cross-process lock and
// applies index migrations.
func Open(dir string, synth capability.Synthesizer, runtime config.RuntimeConfig) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cache directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cache directory %s is in use by another process", dir)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{
		dir:     dir,
		db:      db,
		lock:    lock,
		synth:   synth,
		runtime: runtime,
	}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var dbErr error
	if s.db != nil {
		dbErr = s.db.Close()
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	return dbErr
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// Resolve returns the audio artifact for (text, voice), synthesizing and
// storing it on miss. Resolution is serialized per key: concurrent callers
// for the same key share one synthesis call, and a key already populated by
// another process is verified and reused instead of resynthesized.
func (s *Store) Resolve(ctx context.Context, text string, voice capability.Voice) (capability.Artifact, error) {
	key := Key(text, voice)

	v, err, _ := s.flight.Do(key, func() (any, error) {
		return s.resolve(ctx, key, text, voice)
	})
	if err != nil {
		return capability.Artifact{}, err
	}
	return v.(capability.Artifact), nil
}

func (s *Store) resolve(ctx context.Context, key, text string, voice capability.Voice) (capability.Artifact, error) {
	if artifact, ok, err := s.lookup(ctx, key); err != nil {
		return capability.Artifact{}, err
	} else if ok {
		return artifact, nil
	}

	var audio capability.Audio
	err := capability.Retry(ctx, s.runtime.RetryCount, s.runtime.RetryBackoff, "synthesize", func() error {
		out, err := s.synth.Synthesize(ctx, NormalizeText(text), voice)
		if err != nil {
			return err
		}
		if len(out.PCM) == 0 {
			return fmt.Errorf("synthesizer returned empty audio")
		}
		audio = out
		return nil
	})
	if err != nil {
		return capability.Artifact{}, err
	}

	relPath, err := s.writeArtifact(key, voice, audio)
	if err != nil {
		return capability.Artifact{}, err
	}

	// A concurrent process may have populated the key while we synthesized.
	// The insert is idempotent; the stored row stays canonical either way,
	// which is safe because identical keys produce identical artifacts.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (key, rel_path, duration_ms, sample_rate, bit_depth, channels)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key,
		relPath,
		audio.Duration().Milliseconds(),
		audio.Format.SampleRate,
		audio.Format.BitDepth,
		audio.Format.Channels,
	); err != nil {
		return capability.Artifact{}, fmt.Errorf("index cache entry: %w", err)
	}

	artifact, ok, err := s.lookup(ctx, key)
	if err != nil {
		return capability.Artifact{}, err
	}
	if !ok {
		return capability.Artifact{}, fmt.Errorf("%w: entry for key %s vanished after insert", ErrInconsistent, key)
	}
	return artifact, nil
}

// lookup loads an entry and cross-checks the artifact on disk against the
// indexed duration before handing it out.
func (s *Store) lookup(ctx context.Context, key string) (capability.Artifact, bool, error) {
	var relPath string
	var durationMS int64
	var format capability.Format

	err := s.db.QueryRowContext(ctx,
		`SELECT rel_path, duration_ms, sample_rate, bit_depth, channels FROM entries WHERE key = ?`,
		key,
	).Scan(&relPath, &durationMS, &format.SampleRate, &format.BitDepth, &format.Channels)
	if errors.Is(err, sql.ErrNoRows) {
		return capability.Artifact{}, false, nil
	}
	if err != nil {
		return capability.Artifact{}, false, fmt.Errorf("query cache entry: %w", err)
	}

	path := filepath.Join(s.dir, relPath)
	info, err := os.Stat(path)
	if err != nil {
		return capability.Artifact{}, false, fmt.Errorf("%w: indexed artifact %s is unreadable: %v", ErrInconsistent, relPath, err)
	}

	duration := time.Duration(durationMS) * time.Millisecond
	expected := int64(float64(format.BytesPerSecond()) * duration.Seconds())
	actual := info.Size() - 44 // PCM bytes behind the WAV header
	if diff := expected - actual; diff < -int64(format.BytesPerSecond()/10) || diff > int64(format.BytesPerSecond()/10) {
		return capability.Artifact{}, false, fmt.Errorf(
			"%w: artifact %s holds %d PCM bytes, index expects about %d", ErrInconsistent, relPath, actual, expected)
	}

	return capability.Artifact{
		Path:     path,
		Format:   format,
		Duration: duration,
	}, true, nil
}

// writeArtifact persists audio atomically: temp file first, then rename, so
// a concurrent reader can never observe a partial entry.
func (s *Store) writeArtifact(key string, voice capability.Voice, audio capability.Audio) (string, error) {
	relDir := filepath.Join(
		sanitizePathPart(voice.Language.String()),
		sanitizePathPart(voice.Name),
	)
	if err := os.MkdirAll(filepath.Join(s.dir, relDir), 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	relPath := filepath.Join(relDir, key+".wav")
	tmpPath := filepath.Join(s.dir, relDir, "tmp-"+uuid.NewString())
	if err := wav.WriteFile(tmpPath, audio); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, relPath)); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return relPath, nil
}

// Len reports the number of indexed entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

// Clear removes every entry and artifact. The only way an existing key ever
// changes is through this explicit wipe.
func (s *Store) Clear(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT rel_path FROM entries`)
	if err != nil {
		return fmt.Errorf("list cache entries: %w", err)
	}
	var paths []string
	for rows.Next() {
		var relPath string
		if err := rows.Scan(&relPath); err != nil {
			rows.Close()
			return err
		}
		paths = append(paths, relPath)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear cache index: %w", err)
	}
	for _, relPath := range paths {
		_ = os.Remove(filepath.Join(s.dir, relPath))
	}
	return nil
}
