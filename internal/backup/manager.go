// Package backup implements C3: scheduled database/files/logs backups with
// checksum verification and retention GC, grounded in the teacher's
// robfig/cron scheduler idiom (see scheduler_service.go's jobEntry shape) and
// in original_source/server/backup_manager.py for the backup/restore/cleanup
// contract itself.
package backup

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

const recordPrefix = "backup:record:"

// KVDumper is implemented by the store used for the "database" backup
// family. This module owns no Postgres, so the database dump is the
// module's own KV store exported as newline-delimited JSON — it keeps the
// three-family/checksum/retention contract intact while being honest about
// what "database" means for this persistence layer.
type KVDumper interface {
	DumpAll(ctx context.Context) (map[string][]byte, error)
}

// Manager runs the three backup families and their retention sweep, each on
// its own cron schedule, mirroring the teacher's one-cron-per-registered-job
// scheduler shape.
type Manager struct {
	cfg    common.BackupConfig
	store  store.Store
	dumper KVDumper
	logger arbor.ILogger
	cron   *cron.Cron
}

// New builds a backup Manager. dumper may be nil (e.g. when the caller only
// wants file/log backups); BackupDatabase then records a failed backup and
// returns an error.
func New(cfg common.BackupConfig, s store.Store, dumper KVDumper, logger arbor.ILogger) (*Manager, error) {
	if cfg.Dir == "" {
		cfg.Dir = "./backups"
	}
	for _, sub := range []string{"database", "files", "logs"} {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("backup: creating %s dir: %w", sub, err)
		}
	}
	return &Manager{cfg: cfg, store: s, dumper: dumper, logger: logger, cron: cron.New()}, nil
}

// Start registers the four scheduled jobs and starts the cron runner.
// Schedules default to the teacher-observed expressions (§4.3): DB daily
// 02:00, files daily 03:00, logs weekly Sunday 04:00, retention daily 05:00.
func (m *Manager) Start(ctx context.Context) error {
	dbSchedule := orDefault(m.cfg.DatabaseSchedule, "0 2 * * *")
	filesSchedule := orDefault(m.cfg.FilesSchedule, "0 3 * * *")
	logsSchedule := orDefault(m.cfg.LogsSchedule, "0 4 * * 0")
	retentionSchedule := orDefault(m.cfg.RetentionSchedule, "0 5 * * *")

	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"database_backup", dbSchedule, func() {
			if _, err := m.BackupDatabase(ctx); err != nil {
				m.logger.Error().Err(err).Msg("scheduled database backup failed")
			}
		}},
		{"files_backup", filesSchedule, func() {
			if _, err := m.BackupFiles(ctx, nil); err != nil {
				m.logger.Error().Err(err).Msg("scheduled files backup failed")
			}
		}},
		{"logs_backup", logsSchedule, func() {
			if _, err := m.BackupLogs(ctx); err != nil {
				m.logger.Error().Err(err).Msg("scheduled logs backup failed")
			}
		}},
		{"retention_sweep", retentionSchedule, func() {
			if _, err := m.CleanupOldBackups(ctx); err != nil {
				m.logger.Error().Err(err).Msg("scheduled retention sweep failed")
			}
		}},
	}

	for _, j := range jobs {
		if _, err := m.cron.AddFunc(j.schedule, j.run); err != nil {
			return fmt.Errorf("backup: registering %s (%s): %w", j.name, j.schedule, err)
		}
	}

	m.cron.Start()
	m.logger.Info().
		Str("db_schedule", dbSchedule).
		Str("files_schedule", filesSchedule).
		Str("logs_schedule", logsSchedule).
		Str("retention_schedule", retentionSchedule).
		Msg("backup scheduler started")
	return nil
}

// Stop halts the cron runner, waiting for any in-flight job.
func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func backupID(kind models.BackupType) string {
	return fmt.Sprintf("%s_backup_%s_%s", kind, time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (m *Manager) retentionDays(kind models.BackupType) int {
	if m.cfg.RetentionDays > 0 {
		return m.cfg.RetentionDays
	}
	switch kind {
	case models.BackupTypeFiles:
		return 7
	case models.BackupTypeLogs:
		return 14
	default:
		return 30
	}
}

func (m *Manager) saveRecord(ctx context.Context, rec models.BackupRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := time.Duration(m.retentionDays(rec.Type)) * 24 * time.Hour
	return m.store.Set(ctx, recordPrefix+rec.BackupID, raw, ttl)
}

func (m *Manager) writeSidecar(artifactPath string, rec models.BackupRecord) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	sidecar := artifactPath[:len(artifactPath)-len(filepath.Ext(artifactPath))] + ".json"
	return os.WriteFile(sidecar, raw, 0o644)
}

// failureRecord persists a failed-status record (§"Backup failures: logged
// and recorded with status=failed; does not propagate") and returns that
// failed record; callers return it alongside their own error.
func (m *Manager) failureRecord(ctx context.Context, id string, kind models.BackupType, cause error) models.BackupRecord {
	rec := models.BackupRecord{
		BackupID:  id,
		Type:      kind,
		Timestamp: time.Now().UTC(),
		Status:    models.BackupStatusFailed,
		Error:     cause.Error(),
	}
	if err := m.saveRecord(ctx, rec); err != nil {
		m.logger.Warn().Err(err).Str("backup_id", id).Msg("failed to persist failure record")
	}
	m.logger.Error().Err(cause).Str("backup_id", id).Str("type", string(kind)).Msg("backup failed")
	return rec
}

// BackupDatabase dumps the module's own KV store as newline-delimited JSON,
// gzip-compressed, per SPEC_FULL.md's honest substitution for pg_dump.
func (m *Manager) BackupDatabase(ctx context.Context) (models.BackupRecord, error) {
	id := backupID(models.BackupTypeDatabase)
	if m.dumper == nil {
		return m.failureRecord(ctx, id, models.BackupTypeDatabase, fmt.Errorf("no KV dumper configured")), fmt.Errorf("backup: no KV dumper configured")
	}

	filename := id + ".ndjson.gz"
	path := filepath.Join(m.cfg.Dir, "database", filename)

	start := time.Now()
	entries, err := m.dumper.DumpAll(ctx)
	if err != nil {
		return m.failureRecord(ctx, id, models.BackupTypeDatabase, err), err
	}

	if err := writeNDJSONGz(path, entries); err != nil {
		return m.failureRecord(ctx, id, models.BackupTypeDatabase, err), err
	}

	rec, err := m.finalizeRecord(ctx, id, models.BackupTypeDatabase, path, filename, nil, true, start)
	if err != nil {
		return m.failureRecord(ctx, id, models.BackupTypeDatabase, err), err
	}
	m.logger.Info().Str("backup_id", id).Float64("size_mb", rec.SizeMB).Msg("database backup completed")
	return rec, nil
}

func writeNDJSONGz(path string, entries map[string][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	w := bufio.NewWriter(gz)
	defer w.Flush()

	for k, v := range entries {
		line, err := json.Marshal(struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}{Key: k, Value: string(v)})
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return nil
}

// BackupFiles tars and gzips a configured list of directories. A nil dirs
// argument falls back to config.FilesDir (a single root, matching the
// original's configurable directory list collapsed to one tree for this
// module's simpler on-disk layout).
func (m *Manager) BackupFiles(ctx context.Context, dirs []string) (models.BackupRecord, error) {
	id := backupID(models.BackupTypeFiles)
	if len(dirs) == 0 {
		if m.cfg.FilesDir != "" {
			dirs = []string{m.cfg.FilesDir}
		}
	}

	filename := id + ".tar.gz"
	path := filepath.Join(m.cfg.Dir, "files", filename)
	start := time.Now()

	if err := tarGzDirs(path, dirs, m.logger); err != nil {
		return m.failureRecord(ctx, id, models.BackupTypeFiles, err), err
	}

	rec, err := m.finalizeRecord(ctx, id, models.BackupTypeFiles, path, filename, dirs, true, start)
	if err != nil {
		return m.failureRecord(ctx, id, models.BackupTypeFiles, err), err
	}
	m.logger.Info().Str("backup_id", id).Float64("size_mb", rec.SizeMB).Msg("files backup completed")
	return rec, nil
}

// BackupLogs tars and gzips the configured log directory.
func (m *Manager) BackupLogs(ctx context.Context) (models.BackupRecord, error) {
	id := backupID(models.BackupTypeLogs)
	var dirs []string
	if m.cfg.LogsDir != "" {
		dirs = []string{m.cfg.LogsDir}
	}

	filename := id + ".tar.gz"
	path := filepath.Join(m.cfg.Dir, "logs", filename)
	start := time.Now()

	if err := tarGzDirs(path, dirs, m.logger); err != nil {
		return m.failureRecord(ctx, id, models.BackupTypeLogs, err), err
	}

	rec, err := m.finalizeRecord(ctx, id, models.BackupTypeLogs, path, filename, dirs, true, start)
	if err != nil {
		return m.failureRecord(ctx, id, models.BackupTypeLogs, err), err
	}
	m.logger.Info().Str("backup_id", id).Msg("logs backup completed")
	return rec, nil
}

func tarGzDirs(destPath string, dirs []string, logger arbor.ILogger) error {
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			logger.Warn().Str("dir", dir).Msg("backup source directory not found, skipping")
			continue
		}
		base := filepath.Base(dir)
		if !info.IsDir() {
			continue
		}
		err = filepath.Walk(dir, func(p string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			name := base
			if rel != "." {
				name = filepath.Join(base, rel)
			}
			hdr, err := tar.FileInfoHeader(fi, "")
			if err != nil {
				return err
			}
			hdr.Name = name
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			src, err := os.Open(p)
			if err != nil {
				return err
			}
			defer src.Close()
			_, err = io.Copy(tw, src)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) finalizeRecord(ctx context.Context, id string, kind models.BackupType, path, filename string, dirs []string, compressed bool, start time.Time) (models.BackupRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.BackupRecord{}, err
	}
	checksum, err := checksumFile(path)
	if err != nil {
		return models.BackupRecord{}, err
	}

	rec := models.BackupRecord{
		BackupID:        id,
		Type:            kind,
		Timestamp:       time.Now().UTC(),
		Filename:        filename,
		Directories:     dirs,
		SizeBytes:       info.Size(),
		SizeMB:          roundTo(float64(info.Size())/(1024*1024), 2),
		DurationSeconds: roundTo(time.Since(start).Seconds(), 2),
		Checksum:        checksum,
		Compressed:      compressed,
		Status:          models.BackupStatusCompleted,
	}
	if err := m.saveRecord(ctx, rec); err != nil {
		return models.BackupRecord{}, err
	}
	if err := m.writeSidecar(path, rec); err != nil {
		return models.BackupRecord{}, err
	}
	return rec, nil
}

func roundTo(v float64, places int) float64 {
	mult := 1.0
	for i := 0; i < places; i++ {
		mult *= 10
	}
	return float64(int(v*mult+0.5)) / mult
}

// RestoreDatabase restores the KV store from a database-family backup after
// verifying its checksum. A checksum mismatch aborts with no restore action.
func (m *Manager) RestoreDatabase(ctx context.Context, backupID string, restorer func(entries map[string][]byte) error) error {
	rec, err := m.GetRecord(ctx, backupID)
	if err != nil {
		return err
	}
	if rec.Type != models.BackupTypeDatabase {
		return fmt.Errorf("backup: %s is not a database backup", backupID)
	}

	path := filepath.Join(m.cfg.Dir, "database", rec.Filename)
	currentChecksum, err := checksumFile(path)
	if err != nil {
		return fmt.Errorf("backup: reading backup file: %w", err)
	}
	if currentChecksum != rec.Checksum {
		return fmt.Errorf("backup: checksum mismatch for %s, refusing to restore", backupID)
	}

	entries, err := readNDJSONGz(path)
	if err != nil {
		return fmt.Errorf("backup: reading backup contents: %w", err)
	}
	return restorer(entries)
}

func readNDJSONGz(path string) (map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	out := make(map[string][]byte)
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var line struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, err
		}
		out[line.Key] = []byte(line.Value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRecord fetches a single backup record by id.
func (m *Manager) GetRecord(ctx context.Context, backupID string) (models.BackupRecord, error) {
	raw, err := m.store.Get(ctx, recordPrefix+backupID)
	if err != nil {
		return models.BackupRecord{}, fmt.Errorf("backup: record %s not found: %w", backupID, err)
	}
	var rec models.BackupRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.BackupRecord{}, err
	}
	return rec, nil
}

// ListBackups returns all known records, optionally filtered by type.
func (m *Manager) ListBackups(ctx context.Context, kind models.BackupType) ([]models.BackupRecord, error) {
	raw, err := m.store.Scan(ctx, recordPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.BackupRecord, 0, len(raw))
	for _, v := range raw {
		var rec models.BackupRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			continue
		}
		if kind != "" && rec.Type != kind {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// CleanupOldBackups deletes backup artifacts (and their sidecar + record)
// past their type's retention window. The store already expires records via
// TTL; this additionally removes the on-disk files those expired records
// pointed to, since a TTL'd KV record carries no deletion hook of its own.
func (m *Manager) CleanupOldBackups(ctx context.Context) (int, error) {
	records, err := m.ListBackups(ctx, "")
	if err != nil {
		return 0, err
	}

	deleted := 0
	now := time.Now().UTC()
	for _, rec := range records {
		cutoff := now.AddDate(0, 0, -m.retentionDays(rec.Type))
		if rec.Timestamp.After(cutoff) {
			continue
		}
		dir := string(rec.Type)
		artifactPath := filepath.Join(m.cfg.Dir, dir, rec.Filename)
		_ = os.Remove(artifactPath)
		sidecar := artifactPath[:len(artifactPath)-len(filepath.Ext(artifactPath))] + ".json"
		_ = os.Remove(sidecar)
		if err := m.store.Delete(ctx, recordPrefix+rec.BackupID); err != nil {
			m.logger.Warn().Err(err).Str("backup_id", rec.BackupID).Msg("failed to delete expired backup record")
		}
		deleted++
	}
	m.logger.Info().Int("deleted", deleted).Msg("backup retention sweep completed")
	return deleted, nil
}
