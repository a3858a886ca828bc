package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// BackupOptions controls the periodic sqlite file backup.
type BackupOptions struct {
	Path          string
	IntervalHours int
	RetentionDays int
}

// BackupService copies the sqlite file into a timestamped backup on a
// fixed interval and prunes backups past the retention window.
type BackupService struct {
	dbPath string
	opts   BackupOptions
	log    zerolog.Logger
}

// NewBackupService creates a backup service for the database file at dbPath.
func NewBackupService(dbPath string, opts BackupOptions, logger zerolog.Logger) *BackupService {
	if opts.Path == "" {
		opts.Path = "backups"
	}
	if opts.IntervalHours <= 0 {
		opts.IntervalHours = 24
	}
	return &BackupService{
		dbPath: dbPath,
		opts:   opts,
		log:    logger.With().Str("component", "backup").Logger(),
	}
}

// Run performs an initial backup and then loops until the context ends.
func (s *BackupService) Run(ctx context.Context) {
	interval := time.Duration(s.opts.IntervalHours) * time.Hour
	s.log.Info().Dur("interval", interval).Str("path", s.opts.Path).Msg("backup loop started")

	if err := s.Backup(); err != nil {
		s.log.Error().Err(err).Msg("initial backup failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Backup(); err != nil {
				s.log.Error().Err(err).Msg("scheduled backup failed")
				continue
			}
			s.pruneOld()
		}
	}
}

// Backup copies the database file into the backup directory.
func (s *BackupService) Backup() error {
	if err := os.MkdirAll(s.opts.Path, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("zenbook_%s.db", time.Now().Format("20060102_150405"))
	target := filepath.Join(s.opts.Path, name)

	source, err := os.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("open database file: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}

	s.log.Info().Str("file", name).Msg("backup completed")
	return nil
}

func (s *BackupService) pruneOld() {
	if s.opts.RetentionDays <= 0 {
		return
	}

	entries, err := os.ReadDir(s.opts.Path)
	if err != nil {
		s.log.Error().Err(err).Msg("read backup directory failed")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.opts.RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.log.Info().Str("file", entry.Name()).Msg("removing expired backup")
			_ = os.Remove(filepath.Join(s.opts.Path, entry.Name()))
		}
	}
}
