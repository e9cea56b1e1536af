// Package export writes successful query results to the object store as
// Parquet and reads them back by id.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/sqlrag/sqlrag/internal/query"
	"github.com/sqlrag/sqlrag/internal/storage"
)

const ContentType = "application/vnd.apache.parquet"

var ErrNotFound = errors.New("export not found")

// Cell is one value of a result in long format. Results have arbitrary
// columns, so each cell becomes its own Parquet row.
type Cell struct {
	Row    int64   `parquet:"row"`
	Column string  `parquet:"column"`
	Kind   string  `parquet:"kind"`
	Value  *string `parquet:"value,optional"`
}

type Export struct {
	ID        string    `json:"export_id"`
	Key       string    `json:"key"`
	Rows      int       `json:"rows"`
	Cells     int       `json:"cells"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	store  storage.ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store storage.ObjectStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Write stores result under a fresh id. question and sql travel as object
// metadata, query-escaped because metadata is sent as HTTP headers.
func (s *Service) Write(ctx context.Context, question string, result query.Result) (Export, error) {
	if !result.Success {
		return Export{}, fmt.Errorf("only successful results can be exported")
	}
	data, cells, err := Encode(result)
	if err != nil {
		return Export{}, err
	}

	id := uuid.NewString()
	key, err := storage.BuildExportPath(id)
	if err != nil {
		return Export{}, err
	}
	created := s.now().UTC()
	info, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			"question":   metadataValue(question),
			"sql":        metadataValue(result.SQL),
			"rows":       strconv.Itoa(result.RowCount()),
			"created-at": created.Format(time.RFC3339),
		},
	})
	if err != nil {
		return Export{}, fmt.Errorf("store export: %w", err)
	}

	exp := Export{ID: id, Key: key, Rows: result.RowCount(), Cells: cells, Size: info.Size, CreatedAt: created}
	s.logger.InfoContext(ctx, "result exported", slog.String("export_id", id), slog.Int("rows", exp.Rows), slog.Int64("size", exp.Size))
	return exp, nil
}

// Open returns the Parquet payload of an export.
func (s *Service) Open(ctx context.Context, id string) (io.ReadCloser, storage.ObjectInfo, error) {
	key, err := storage.BuildExportPath(id)
	if err != nil {
		return nil, storage.ObjectInfo{}, ErrNotFound
	}
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("stat export: %w", err)
	}
	body, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("get export: %w", err)
	}
	return body, info, nil
}

// Delete removes an export. Unknown ids yield ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	key, err := storage.BuildExportPath(id)
	if err != nil {
		return ErrNotFound
	}
	if _, err := s.store.Stat(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("stat export: %w", err)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	s.logger.InfoContext(ctx, "export deleted", slog.String("export_id", id))
	return nil
}

// Encode renders result as long-format Parquet.
func Encode(result query.Result) ([]byte, int, error) {
	cells := make([]Cell, 0, len(result.Rows)*len(result.Columns))
	for i, row := range result.Rows {
		for j, column := range result.Columns {
			var value any
			if j < len(row) {
				value = row[j]
			}
			kind, text := describe(value)
			cells = append(cells, Cell{Row: int64(i), Column: column, Kind: kind, Value: text})
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Cell](buf)
	if len(cells) > 0 {
		if _, err := writer.Write(cells); err != nil {
			return nil, 0, fmt.Errorf("write parquet cells: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, 0, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), len(cells), nil
}

// Decode reads cells back from an export payload.
func Decode(data []byte) ([]Cell, error) {
	reader := parquet.NewGenericReader[Cell](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()
	cells := make([]Cell, reader.NumRows())
	n, err := reader.Read(cells)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet cells: %w", err)
	}
	return cells[:n], nil
}

func describe(value any) (string, *string) {
	var kind, text string
	switch typed := value.(type) {
	case nil:
		return "null", nil
	case string:
		kind, text = "string", typed
	case int64:
		kind, text = "int", strconv.FormatInt(typed, 10)
	case int:
		kind, text = "int", strconv.Itoa(typed)
	case float64:
		kind, text = "float", strconv.FormatFloat(typed, 'g', -1, 64)
	case bool:
		kind, text = "bool", strconv.FormatBool(typed)
	case time.Time:
		kind, text = "time", typed.UTC().Format(time.RFC3339Nano)
	default:
		kind, text = "other", fmt.Sprint(typed)
	}
	return kind, &text
}

func metadataValue(s string) string {
	return url.QueryEscape(s)
}
