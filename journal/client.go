package journal

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// Config holds journal storage configuration. All partition keys are
// required; they place a captured stream in the dataset layout.
type Config struct {
	// Dataset is the lode dataset ID (default "brine").
	Dataset string
	// Source is the partition key for the origin system.
	Source string
	// Day is the partition key derived from capture start time (YYYY-MM-DD UTC).
	Day string
	// StreamID is the partition key for the captured stream.
	StreamID string
}

// Client abstracts journal storage. Real implementations write to lode
// datasets; stubs are used for testing.
type Client interface {
	// WriteRecords writes a batch of captured line records.
	// Must preserve ordering within the batch.
	WriteRecords(ctx context.Context, records []*Record) error

	// PutJournal writes a raw single-file journal as a dataset sidecar.
	// The filename must not contain path separators or "..".
	PutJournal(ctx context.Context, filename string, data []byte) error

	// Close releases client resources.
	Close() error
}

// LodeClient is a lode-backed implementation of Client.
// Records land in a Dataset with partition keys source/day/stream_id;
// raw journals land under the partition's files/ prefix.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewLodeClient creates a new lode client with filesystem storage.
// The root parameter is the base directory for partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new lode client with a custom store
// factory. Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(cfg.Dataset),
		factory,
		lode.WithHiveLayout("source", "day", "stream_id"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}

	return newClient(ds, cfg, factory), nil
}

// newClient assembles a LodeClient from an open dataset.
func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// WriteRecords writes a batch of captured line records to the dataset.
func (c *LodeClient) WriteRecords(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, c.toRecordRow(record))
	}

	if _, err := c.dataset.Write(ctx, rows, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.StreamID)
	}
	return nil
}

// toRecordRow converts a Record to a row map for lode storage.
// Lode HiveLayout requires records as map[string]any.
func (c *LodeClient) toRecordRow(record *Record) map[string]any {
	return map[string]any{
		"seq":  record.Seq,
		"at":   record.At,
		"line": record.Line,

		// Partition keys
		"source":    c.config.Source,
		"day":       c.config.Day,
		"stream_id": c.config.StreamID,
	}
}

// PutJournal writes a raw journal file at the partition's files/ prefix,
// bypassing the dataset segment machinery entirely.
func (c *LodeClient) PutJournal(ctx context.Context, filename string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.config.Dataset)
	}

	path := c.buildFilePath(filename)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

// getOrCreateStore lazily initializes the Store from the factory.
func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// buildFilePath computes the partitioned path for a raw journal file.
// Format: datasets/<dataset>/partitions/source=<s>/day=<d>/stream_id=<id>/files/<filename>
func (c *LodeClient) buildFilePath(filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/source=%s/day=%s/stream_id=%s/files/%s",
		c.config.Dataset,
		c.config.Source,
		c.config.Day,
		c.config.StreamID,
		filename,
	)
}

// validateFilename rejects names that would escape the files/ prefix.
func validateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("journal filename must not be empty")
	}
	for i := 0; i < len(filename); i++ {
		if filename[i] == '/' || filename[i] == '\\' {
			return fmt.Errorf("journal filename %q must not contain path separators", filename)
		}
	}
	if filename == ".." || len(filename) >= 2 && filename[:2] == ".." {
		return fmt.Errorf("journal filename %q must not traverse directories", filename)
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current lode API
	return nil
}

// Verify LodeClient implements Client.
var _ Client = (*LodeClient)(nil)

// StubClient is a test client that accepts writes without persisting.
type StubClient struct {
	mu       sync.Mutex
	Records  []*Record
	Journals []StubJournalRecord
	Closed   bool
}

// StubJournalRecord is a recorded PutJournal call for testing.
type StubJournalRecord struct {
	Filename string
	Data     []byte
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteRecords implements Client.
func (c *StubClient) WriteRecords(_ context.Context, records []*Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Records = append(c.Records, records...)
	return nil
}

// PutJournal implements Client.
func (c *StubClient) PutJournal(_ context.Context, filename string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Journals = append(c.Journals, StubJournalRecord{Filename: filename, Data: data})
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Verify StubClient implements Client.
var _ Client = (*StubClient)(nil)
