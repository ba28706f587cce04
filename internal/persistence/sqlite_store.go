package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/lang-repetitor/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
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

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.CompileJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, phrase_file, output_base, status, error,
		        audio_track, subtitle_file, video_track, failed_units, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.CompileJob, 0)
	for rows.Next() {
		var item jobs.CompileJob
		var status string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&item.Payload.PhraseFile,
			&item.Payload.OutputBase,
			&status,
			&item.Error,
			&item.Result.AudioTrack,
			&item.Result.SubtitleFile,
			&item.Result.VideoTrack,
			&item.Result.FailedUnits,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.CompileJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, phrase_file, output_base, status, error,
			audio_track, subtitle_file, video_track, failed_units, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			phrase_file=excluded.phrase_file,
			output_base=excluded.output_base,
			status=excluded.status,
			error=excluded.error,
			audio_track=excluded.audio_track,
			subtitle_file=excluded.subtitle_file,
			video_track=excluded.video_track,
			failed_units=excluded.failed_units,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		job.Payload.PhraseFile,
		job.Payload.OutputBase,
		string(job.Status),
		job.Error,
		job.Result.AudioTrack,
		job.Result.SubtitleFile,
		job.Result.VideoTrack,
		job.Result.FailedUnits,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

// RecordAsset stores the compiled asset for a source. The newest compile
// of a source wins.
func (s *SQLiteStore) RecordAsset(ctx context.Context, record AssetRecord) error {
	if strings.TrimSpace(record.DedupeKey) == "" {
		return fmt.Errorf("dedupe key is required")
	}
	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assets (
			dedupe_key, source, audio_track, subtitle_file, video_track, duration_ms, failed_units, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedupe_key) DO UPDATE SET
			source=excluded.source,
			audio_track=excluded.audio_track,
			subtitle_file=excluded.subtitle_file,
			video_track=excluded.video_track,
			duration_ms=excluded.duration_ms,
			failed_units=excluded.failed_units,
			created_at=excluded.created_at`,
		record.DedupeKey,
		record.Source,
		record.AudioTrack,
		record.SubtitleFile,
		record.VideoTrack,
		record.Duration.Milliseconds(),
		record.FailedUnits,
		createdAt,
	)
	return err
}

// HasAsset reports whether a source version was already compiled.
func (s *SQLiteStore) HasAsset(ctx context.Context, dedupeKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets WHERE dedupe_key = ?`, dedupeKey).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLiteStore) ListAssets(ctx context.Context) ([]AssetRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT dedupe_key, source, audio_track, subtitle_file, video_track, duration_ms, failed_units, created_at
		 FROM assets
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]AssetRecord, 0)
	for rows.Next() {
		var item AssetRecord
		var durationMS int64
		if err := rows.Scan(
			&item.DedupeKey,
			&item.Source,
			&item.AudioTrack,
			&item.SubtitleFile,
			&item.VideoTrack,
			&durationMS,
			&item.FailedUnits,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.Duration = time.Duration(durationMS) * time.Millisecond
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
