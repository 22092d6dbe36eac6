package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

var ErrDisabled = errors.New("backup not configured")

// objectStore is the subset of the S3 API the manager uses.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type Config struct {
	S3         S3Config
	Prefix     string
	Passphrase string
	Interval   time.Duration
	Retention  time.Duration
}

// Configured reports whether there is somewhere to upload to and a key to
// encrypt with.
func (c Config) Configured() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != "" && c.Passphrase != ""
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Snapshot is one uploaded, encrypted copy of the database.
type Snapshot struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager uploads encrypted database snapshots to S3-compatible storage on a
// schedule and prunes the ones past retention.
type Manager struct {
	cfg    Config
	db     *sql.DB
	client objectStore
	logger *slog.Logger

	runMu sync.Mutex

	mu     sync.RWMutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager. db may be nil when the manager is only used
// to restore. Without a complete configuration the manager is disabled.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger,
		status: Status{State: StateDisabled},
	}
	if cfg.Configured() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool {
	return m.client != nil
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
}

// Start runs a backup and a prune every interval until ctx is done or Stop
// is called. It does nothing when the manager is disabled.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() || m.cfg.Interval <= 0 {
		return
	}
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick(ctx)
			}
		}
	}()
}

func (m *Manager) tick(ctx context.Context) {
	snap, err := m.Run(ctx)
	if err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
		return
	}
	m.logger.Info("backup uploaded", "key", snap.Key, "size", snap.Size)

	if m.cfg.Retention <= 0 {
		return
	}
	n, err := m.Prune(ctx, time.Now().Add(-m.cfg.Retention))
	if err != nil {
		m.logger.Error("prune backups", "error", err)
	} else if n > 0 {
		m.logger.Info("pruned backups", "count", n)
	}
}

// Stop ends the schedule and waits for a running backup to finish.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Run snapshots the database, encrypts it and uploads it. Only one run
// happens at a time.
func (m *Manager) Run(ctx context.Context) (*Snapshot, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.setStatus(Status{State: StateRunning})
	snap, err := m.run(ctx)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}
	m.setStatus(Status{State: StateIdle, LastBackup: &snap.CreatedAt})
	return snap, nil
}

func (m *Manager) run(ctx context.Context) (*Snapshot, error) {
	tmpDir, err := os.MkdirTemp("", "mila-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// VACUUM INTO writes a consistent copy without blocking writers for long.
	copyPath := filepath.Join(tmpDir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, copyPath); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	plaintext, err := os.ReadFile(copyPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plaintext, m.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	now := time.Now().UTC()
	key := m.cfg.Prefix + "mila-" + now.Format("20060102T150405.000Z") + ".db.enc"
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	return &Snapshot{Key: key, Size: int64(len(sealed)), CreatedAt: now}, nil
}

// List returns the uploaded snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Snapshot, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	var snaps []Snapshot
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Prefix: aws.String(m.cfg.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".db.enc") {
				continue
			}
			snaps = append(snaps, Snapshot{
				Key:       key,
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps, nil
}

// Prune deletes snapshots created before cutoff. The newest snapshot is
// always kept.
func (m *Manager) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	snaps, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i, snap := range snaps {
		if i == 0 || !snap.CreatedAt.Before(cutoff) {
			continue
		}
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(snap.Key),
		})
		if err != nil {
			return deleted, fmt.Errorf("delete snapshot %s: %w", snap.Key, err)
		}
		deleted++
	}
	return deleted, nil
}

// Restore downloads and decrypts a snapshot, checks that it is a sound
// SQLite database and moves it to dstPath. The database at dstPath must not
// be open.
func (m *Manager) Restore(ctx context.Context, key, dstPath string) error {
	if !m.Enabled() {
		return ErrDisabled
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	sealed, err := io.ReadAll(out.Body)
	out.Body.Close()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	plaintext, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("decrypt snapshot: %w", err)
	}

	dir := filepath.Dir(dstPath)
	tmp, err := os.CreateTemp(dir, ".restore-*.db")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(plaintext); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := checkIntegrity(ctx, tmp.Name()); err != nil {
		return err
	}

	// stale WAL files would be replayed over the restored database
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dstPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", suffix, err)
		}
	}
	if err := os.Rename(tmp.Name(), dstPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("check snapshot: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("snapshot failed integrity check: %s", result)
	}
	return nil
}
