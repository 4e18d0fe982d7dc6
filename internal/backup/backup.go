// Package backup writes encrypted snapshots of the SQLite database to
// S3-compatible storage and restores them.
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
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

const keyLayout = "2006-01-02T150405Z"

// ErrNotConfigured is returned when no bucket or credentials are set.
var ErrNotConfigured = errors.New("backup: storage not configured")

// objectStore is the subset of *s3.Client used here.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Object is one stored snapshot.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type Manager struct {
	cfg    Config
	client objectStore
	logger *slog.Logger
	now    func() time.Time
}

// NewManager returns ErrNotConfigured when cfg lacks a bucket or credentials.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return newManager(cfg, s3.New(opts), logger), nil
}

func newManager(cfg Config, client objectStore, logger *slog.Logger) *Manager {
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &Manager{cfg: cfg, client: client, logger: logger, now: time.Now}
}

func (m *Manager) key(name string) string {
	if m.cfg.Prefix == "" {
		return name
	}
	return m.cfg.Prefix + "/" + name
}

// Snapshot returns a consistent copy of the database file. VACUUM INTO runs
// outside any transaction and works for file and in-memory databases.
func Snapshot(ctx context.Context, db *sql.DB) ([]byte, error) {
	dir, err := os.MkdirTemp("", "familytasks-snapshot-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Run snapshots db, encrypts it and uploads it. It returns the object.
func (m *Manager) Run(ctx context.Context, db *sql.DB, passphrase string) (*Object, error) {
	plain, err := Snapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	sealed, err := Seal(plain, passphrase)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	key := m.key("familytasks-" + now.Format(keyLayout) + ".db.enc")
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))
	return &Object{Key: key, Size: int64(len(sealed)), LastModified: now}, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	prefix := ""
	if m.cfg.Prefix != "" {
		prefix = m.cfg.Prefix + "/"
	}

	var objects []Object
	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.cfg.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, o := range out.Contents {
			key := aws.ToString(o.Key)
			if !strings.HasSuffix(key, ".db.enc") {
				continue
			}
			objects = append(objects, Object{Key: key, Size: aws.ToInt64(o.Size), LastModified: aws.ToTime(o.LastModified)})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	// Keys embed the UTC timestamp, so key order is time order.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
	return objects, nil
}

// Prune deletes all but the newest keep snapshots and reports how many were
// removed.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, errors.New("backup: keep must be at least 1")
	}
	objects, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(objects) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, o := range objects[keep:] {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Warn("delete snapshot", "key", o.Key, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Restore downloads key, decrypts it, checks its integrity and writes it to
// dstPath. An empty key selects the newest snapshot. The server must not be
// running against dstPath.
func (m *Manager) Restore(ctx context.Context, key, passphrase, dstPath string) (string, error) {
	if key == "" {
		objects, err := m.List(ctx)
		if err != nil {
			return "", err
		}
		if len(objects) == 0 {
			return "", errors.New("backup: no snapshots stored")
		}
		key = objects[0].Key
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("download snapshot: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	plain, err := Open(sealed, passphrase)
	if err != nil {
		return "", err
	}

	tmp := dstPath + ".restore"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(ctx, tmp); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		return "", fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dstPath + "-wal")
	os.Remove(dstPath + "-shm")

	m.logger.Info("backup restored", "key", key, "path", dstPath)
	return key, nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
