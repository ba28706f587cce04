package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/lang-repetitor/internal/compiler"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/internal/jobs"
	"github.com/MimeLyc/lang-repetitor/internal/persistence"
	"github.com/MimeLyc/lang-repetitor/internal/render"
	"github.com/MimeLyc/lang-repetitor/pkg/file"
	"github.com/MimeLyc/lang-repetitor/pkg/icron"
	"github.com/MimeLyc/lang-repetitor/pkg/log"
)

// LibraryService watches a phrase library directory on a cron schedule and
// compiles every new or changed phrase file into a media asset.
type LibraryService struct {
	cfg   config.Config
	comp  *compiler.Compiler
	queue *jobs.Queue
	store *persistence.SQLiteStore
	cron  *cron.Cron
}

func NewLibraryService(
	cfg config.Config,
	comp *compiler.Compiler,
	queue *jobs.Queue,
	store *persistence.SQLiteStore,
	c *cron.Cron,
) *LibraryService {
	return &LibraryService{
		cfg:   cfg,
		comp:  comp,
		queue: queue,
		store: store,
		cron:  c,
	}
}

var scanGroup singleflight.Group

// Schedule starts the queue workers and registers the library scan on the
// cron schedule. Overlapping triggers collapse into one scan.
func (s *LibraryService) Schedule(ctx context.Context) error {
	s.queue.Start(func(jobCtx context.Context, job *jobs.CompileJob) (jobs.JobResult, error) {
		return s.Execute(jobCtx, job)
	})

	runFunc := func() {
		_, _, _ = scanGroup.Do("scan", func() (any, error) {
			if err := s.Scan(ctx); err != nil {
				log.Error("Library scan failed: %v", err)
			}
			return nil, nil
		})
	}
	if _, err := s.cron.AddFunc(s.cfg.Service.CronExpr, runFunc); err != nil {
		return fmt.Errorf("register library scan: %w", err)
	}

	if info, err := icron.GetTriggerInfo(s.cfg.Service.CronExpr, time.Now()); err == nil {
		log.Info("Library scan scheduled, next run in %s", info.TimeUntilNext.Round(time.Second))
	}
	return nil
}

// Scan walks the watch directory and enqueues a compile job for every
// phrase file version that has no compiled asset yet.
func (s *LibraryService) Scan(ctx context.Context) error {
	dir := s.cfg.Service.WatchDir
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("WATCH_DIR is not configured")
	}
	log.Info("Scanning phrase library %s", dir)

	found, err := file.FindRecentAfter(dir, time.Time{})
	if err != nil {
		return fmt.Errorf("walk library %s: %w", dir, err)
	}

	enqueued := 0
	for _, path := range found {
		if !strings.EqualFold(filepath.Ext(path), ".txt") {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			log.Error("Failed to stat %s: %v", path, err)
			continue
		}
		key := dedupeKeyFor(path, info.ModTime())

		compiled, err := s.store.HasAsset(ctx, key)
		if err != nil {
			log.Error("Failed to check asset ledger for %s: %v", path, err)
			continue
		}
		if compiled {
			continue
		}

		_, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    "cron",
			DedupeKey: key,
			Payload: jobs.JobPayload{
				PhraseFile: path,
				OutputBase: file.BaseNoExt(path),
			},
		})
		if created {
			enqueued++
			log.Info("Enqueued compile job for %s", path)
		}
	}

	log.Info("Library scan done, %d new jobs", enqueued)
	return nil
}

// Execute compiles one phrase file and records the produced asset.
func (s *LibraryService) Execute(ctx context.Context, job *jobs.CompileJob) (jobs.JobResult, error) {
	phrases, err := ParsePhraseFile(job.Payload.PhraseFile)
	if err != nil {
		return jobs.JobResult{}, err
	}

	asset, err := s.comp.CompileFromText(ctx, phrases, render.Options{
		OutDir:   s.cfg.Service.OutputDir,
		BaseName: job.Payload.OutputBase,
		Video:    false,
	})
	if err != nil {
		return jobs.JobResult{}, err
	}

	record := persistence.AssetRecord{
		DedupeKey:    job.DedupeKey,
		Source:       job.Payload.PhraseFile,
		AudioTrack:   asset.AudioTrack,
		SubtitleFile: asset.SubtitleFile,
		VideoTrack:   asset.VideoTrack,
		Duration:     asset.Duration,
		FailedUnits:  len(asset.FailedUnits),
	}
	if err := s.store.RecordAsset(ctx, record); err != nil {
		log.Error("Failed to record asset for %s: %v", job.Payload.PhraseFile, err)
	}

	return jobs.JobResult{
		AudioTrack:   asset.AudioTrack,
		SubtitleFile: asset.SubtitleFile,
		VideoTrack:   asset.VideoTrack,
		FailedUnits:  len(asset.FailedUnits),
	}, nil
}

// dedupeKeyFor versions a phrase file by path and mtime, so an edited file
// compiles again while an unchanged one stays skipped.
func dedupeKeyFor(path string, modTime time.Time) string {
	return fmt.Sprintf("%s|%d", path, modTime.Unix())
}
