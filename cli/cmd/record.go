package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/brine/adapter"
	adapterredis "github.com/pithecene-io/brine/adapter/redis"
	adapterwebhook "github.com/pithecene-io/brine/adapter/webhook"
	"github.com/pithecene-io/brine/cli/config"
	"github.com/pithecene-io/brine/flush"
	"github.com/pithecene-io/brine/iox"
	"github.com/pithecene-io/brine/journal"
	"github.com/pithecene-io/brine/log"
)

// storeFlushCount is the streaming flush batch size for stored captures.
const storeFlushCount = 256

// RecordCommand returns the record command.
// Record captures a live stream to a journal file and/or configured
// journal storage, then publishes a capture notification if an adapter
// is configured.
func RecordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Capture a brine stream to a journal",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			ConfigFlag(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "write a single-file journal (.mpj) to this path",
			},
			&cli.BoolFlag{
				Name:  "store",
				Usage: "persist the capture to the configured journal storage",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "source label for the capture (overrides config)",
			},
		},
		Action: recordAction,
	}
}

func recordAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	outPath := c.String("out")
	store := c.Bool("store")
	if outPath == "" && !store {
		return cli.Exit("record: either --out or --store is required", 1)
	}
	if store {
		if cfg.Storage.Backend == "" {
			return cli.Exit("record: --store requires a storage section in the config file", 1)
		}
	}

	source := c.String("source")
	if source == "" {
		source = cfg.Source
	}

	src, closeInput, err := openInput(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeInput()

	streamID := uuid.New().String()
	start := time.Now()
	logger := log.NewLogger(streamID).Sugar()

	manifest := journal.Manifest{
		StreamID:  streamID,
		Source:    source,
		CreatedAt: start.UTC().Format(time.RFC3339Nano),
	}

	var buf bytes.Buffer
	jw, err := journal.NewWriter(&buf, manifest)
	if err != nil {
		return cli.Exit(fmt.Sprintf("record: %v", err), 1)
	}

	lines, err := journal.Capture(c.Context, src, jw)
	if err != nil {
		return cli.Exit(fmt.Sprintf("record: %v", err), 1)
	}
	logger.Infof("captured %d lines (%d bytes)", lines, buf.Len())

	storagePath := ""
	if outPath != "" {
		if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
			return cli.Exit(fmt.Sprintf("record: write %s: %v", outPath, err), 1)
		}
		storagePath = outPath
		logger.Infof("journal written to %s", outPath)
	}

	if store {
		path, err := storeJournal(c.Context, cfg, manifest, buf.Bytes(), start)
		if err != nil {
			return cli.Exit(fmt.Sprintf("record: store: %v", err), 1)
		}
		storagePath = path
		logger.Infof("journal stored at %s", path)
	}

	if cfg.Adapter.Type != "" {
		if err := publishCapture(c.Context, cfg, manifest, storagePath, lines, int64(buf.Len()), start); err != nil {
			// Notification failures do not fail the capture; the journal
			// is already persisted.
			logger.Warnf("capture notification failed: %v", err)
		}
	}

	return nil
}

// storeJournal persists the captured records and the raw journal to the
// configured storage backend. Returns the logical storage path.
func storeJournal(ctx context.Context, cfg *config.Config, manifest journal.Manifest, data []byte, start time.Time) (string, error) {
	dataset := cfg.Storage.Dataset
	if dataset == "" {
		dataset = "brine"
	}

	jcfg := journal.Config{
		Dataset:  dataset,
		Source:   manifest.Source,
		Day:      journal.DeriveDay(start),
		StreamID: manifest.StreamID,
	}

	var client journal.Client
	var path string
	switch cfg.Storage.Backend {
	case "file":
		c, err := journal.NewLodeClient(jcfg, cfg.Storage.Path)
		if err != nil {
			return "", err
		}
		client = c
		path = fmt.Sprintf("file://%s/source=%s/day=%s/stream_id=%s",
			cfg.Storage.Path, jcfg.Source, jcfg.Day, jcfg.StreamID)

	case "s3":
		bucket, prefix := journal.ParseS3Path(cfg.Storage.Path)
		c, err := journal.NewLodeS3Client(jcfg, journal.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.S3PathStyle,
		})
		if err != nil {
			return "", err
		}
		client = c
		path = fmt.Sprintf("s3://%s/source=%s/day=%s/stream_id=%s",
			cfg.Storage.Path, jcfg.Source, jcfg.Day, jcfg.StreamID)

	default:
		return "", fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	// The policy owns the client from here; its Close closes the sink.
	policy, err := flush.NewStreamingPolicy(client, flush.StreamingConfig{FlushCount: storeFlushCount})
	if err != nil {
		return "", err
	}
	defer iox.DiscardClose(policy)

	records, err := collectRecords(data)
	if err != nil {
		return "", err
	}
	for _, record := range records {
		if err := policy.Ingest(ctx, record); err != nil {
			return "", err
		}
	}
	if err := policy.Flush(ctx); err != nil {
		return "", err
	}
	if err := client.PutJournal(ctx, manifest.StreamID+".mpj", data); err != nil {
		return "", err
	}
	return path, nil
}

// collectRecords decodes every record frame of a single-file journal.
func collectRecords(data []byte) ([]*journal.Record, error) {
	jr, err := journal.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var records []*journal.Record
	for {
		record, err := jr.Next()
		if err != nil {
			if err == io.EOF {
				return records, nil
			}
			return nil, err
		}
		records = append(records, record)
	}
}

// publishCapture sends the capture event through the configured adapter.
func publishCapture(ctx context.Context, cfg *config.Config, manifest journal.Manifest, storagePath string, lines, size int64, start time.Time) error {
	a, err := newAdapter(cfg.Adapter)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(a)

	event := &adapter.CaptureEvent{
		CodecVersion: manifest.CodecVersion,
		EventType:    "stream_captured",
		StreamID:     manifest.StreamID,
		Source:       manifest.Source,
		Day:          journal.DeriveDay(start),
		StoragePath:  storagePath,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Lines:        lines,
		Bytes:        size,
		DurationMs:   time.Since(start).Milliseconds(),
	}
	return a.Publish(ctx, event)
}

// newAdapter builds the configured capture adapter.
func newAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := -1
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "redis":
		rcfg := adapterredis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
		}
		if retries >= 0 {
			rcfg.Retries = retries
		} else {
			rcfg.Retries = adapterredis.DefaultRetries
		}
		return adapterredis.New(rcfg)

	case "webhook":
		wcfg := adapterwebhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
		}
		if retries >= 0 {
			wcfg.Retries = retries
		} else {
			wcfg.Retries = adapterwebhook.DefaultRetries
		}
		return adapterwebhook.New(wcfg)

	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}
