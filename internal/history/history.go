// Package history persists the list of completed downloads as a JSON document.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"mediafetch/internal/config"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/observability"
	"mediafetch/pkg/fsutil"
	"mediafetch/pkg/gen"
)

const documentVersion = 1

// Storer defines the interface for history operations.
type Storer interface {
	// Append records a completed download. A record with a known ID replaces the stored one.
	Append(ctx context.Context, record entity.HistoryRecord) (entity.HistoryRecord, error)
	// List returns copies of all records, most recent first.
	List(ctx context.Context) []entity.HistoryRecord
	Get(ctx context.Context, id string) (entity.HistoryRecord, error)
	// Remove forgets a record. The referenced file is left alone.
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	// Scan imports media files of dir that are not recorded yet.
	Scan(ctx context.Context, dir string) ([]entity.HistoryRecord, error)
}

type document struct {
	Version int                    `json:"version"`
	Records []entity.HistoryRecord `json:"records"`
}

type store struct {
	log     *slog.Logger
	path    string
	metrics *observability.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	records []entity.HistoryRecord // most recent first
}

// New loads the history document configured in cfg.
// A missing document yields an empty history, a corrupt one is moved aside.
func New(ctx context.Context, log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) (Storer, error) {
	stg := &store{
		log:     log.With(slog.String("package", "history")),
		path:    cfg.Dir.HistoryFile,
		metrics: metrics,
		now:     time.Now,
	}

	err := stg.load(ctx)
	if err != nil {
		return nil, err
	}

	stg.metrics.SetHistoryRecords(len(stg.records))

	return stg, nil
}

func (stg *store) load(ctx context.Context) error {
	log := stg.log.With(slog.String("path", stg.path))

	data, err := os.ReadFile(stg.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.DebugContext(ctx, "history document not found, starting empty")

		return nil
	}

	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	var doc document

	err = json.Unmarshal(data, &doc)
	if err != nil {
		aside := stg.path + ".corrupt-" + strconv.FormatInt(stg.now().Unix(), 10)

		log.WarnContext(ctx, "history document is corrupt, starting empty",
			slog.String("movedTo", aside), slog.Any("error", err))

		if renameErr := os.Rename(stg.path, aside); renameErr != nil {
			log.ErrorContext(ctx, "failed to move corrupt history aside", slog.Any("error", renameErr))
		}

		return nil
	}

	stg.records = doc.Records
	sortRecords(stg.records)

	log.DebugContext(ctx, "history loaded", slog.Int("records", len(stg.records)))

	return nil
}

// commit persists records and makes them current. The caller holds mu.
func (stg *store) commit(records []entity.HistoryRecord) error {
	if records == nil {
		records = []entity.HistoryRecord{}
	}

	data, err := json.MarshalIndent(document{Version: documentVersion, Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	err = fsutil.WriteFileAtomic(stg.path, data)
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	stg.records = records
	stg.metrics.SetHistoryRecords(len(records))

	return nil
}

func (stg *store) Append(ctx context.Context, record entity.HistoryRecord) (entity.HistoryRecord, error) {
	if record.ID == "" {
		record.ID = gen.NewID()
	}

	if record.DownloadedAt.IsZero() {
		record.DownloadedAt = stg.now()
	}

	record.FileSizeBytes = max(record.FileSizeBytes, 0)

	stg.mu.Lock()
	defer stg.mu.Unlock()

	records := make([]entity.HistoryRecord, 0, len(stg.records)+1)
	records = append(records, record)

	for _, existing := range stg.records {
		if existing.ID != record.ID {
			records = append(records, existing)
		}
	}

	// The appended record leads regardless of its timestamp.
	err := stg.commit(records)
	if err != nil {
		return entity.HistoryRecord{}, err
	}

	stg.log.InfoContext(ctx, "history record appended", slog.Any("record", record))

	return record, nil
}

func (stg *store) List(_ context.Context) []entity.HistoryRecord {
	stg.mu.RLock()
	defer stg.mu.RUnlock()

	return slices.Clone(stg.records)
}

func (stg *store) Get(_ context.Context, id string) (entity.HistoryRecord, error) {
	if id == "" {
		return entity.HistoryRecord{}, errs.ErrRecordIDEmpty
	}

	stg.mu.RLock()
	defer stg.mu.RUnlock()

	idx := stg.indexOf(id)
	if idx < 0 {
		return entity.HistoryRecord{}, errs.ErrRecordNotFound
	}

	return stg.records[idx], nil
}

func (stg *store) Remove(ctx context.Context, id string) error {
	if id == "" {
		return errs.ErrRecordIDEmpty
	}

	stg.mu.Lock()
	defer stg.mu.Unlock()

	idx := stg.indexOf(id)
	if idx < 0 {
		return errs.ErrRecordNotFound
	}

	err := stg.commit(slices.Delete(slices.Clone(stg.records), idx, idx+1))
	if err != nil {
		return err
	}

	stg.log.InfoContext(ctx, "history record removed", slog.String("id", id))

	return nil
}

func (stg *store) Clear(ctx context.Context) error {
	stg.mu.Lock()
	defer stg.mu.Unlock()

	err := stg.commit(nil)
	if err != nil {
		return err
	}

	stg.log.InfoContext(ctx, "history cleared")

	return nil
}

func (stg *store) indexOf(id string) int {
	return slices.IndexFunc(stg.records, func(r entity.HistoryRecord) bool {
		return r.ID == id
	})
}

// sortRecords orders records most recent first, keeping insertion order for equal timestamps.
func sortRecords(records []entity.HistoryRecord) {
	slices.SortStableFunc(records, func(a, b entity.HistoryRecord) int {
		return b.DownloadedAt.Compare(a.DownloadedAt)
	})
}

// newScanID derives a stable record ID from the path of an imported file.
func newScanID(path string) string {
	return gen.UUIDv5(path, "scan")
}

// FileExists reports whether the file of r is still on disk.
func FileExists(r entity.HistoryRecord) bool {
	return filepath.IsAbs(r.FilePath) && fsutil.Exists(r.FilePath)
}
