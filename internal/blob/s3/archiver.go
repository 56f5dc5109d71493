package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/platform/snapshot"
)

// multipartThreshold is the encoded size above which uploads switch to the
// multipart manager.
const multipartThreshold = 8 * 1024 * 1024

// ResultsPrefix is where detection documents are archived.
const ResultsPrefix = "results/"

// Archiver is a result sink that stores the raw snapshot behind every
// detection, plus the detection itself, under chronologically sortable
// paths. Archived snapshots feed the replay source.
type Archiver struct {
	writer         domain.BlobWriter
	snapshotPrefix string
	logger         *slog.Logger
}

// NewArchiver creates an Archiver writing snapshots under snapshotPrefix.
func NewArchiver(writer domain.BlobWriter, snapshotPrefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:         writer,
		snapshotPrefix: snapshotPrefix,
		logger:         logger.With(slog.String("component", "s3_archiver")),
	}
}

// Name identifies the sink in logs.
func (a *Archiver) Name() string { return "s3" }

// Publish uploads the snapshot (when present) and the detection.
func (a *Archiver) Publish(ctx context.Context, d domain.Detection) error {
	if d.Snapshot != nil {
		var buf bytes.Buffer
		if err := snapshot.Encode(&buf, *d.Snapshot); err != nil {
			return fmt.Errorf("s3blob: archive snapshot: %w", err)
		}
		path := snapshot.ArchivePath(a.snapshotPrefix, d.Exchange, d.DetectedAt, d.ID)
		if err := a.upload(ctx, path, &buf); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("s3blob: marshal detection: %w", err)
	}
	path := snapshot.ArchivePath(ResultsPrefix, d.Exchange, d.DetectedAt, d.ID)
	if err := a.upload(ctx, path, bytes.NewBuffer(payload)); err != nil {
		return err
	}

	a.logger.DebugContext(ctx, "detection archived",
		slog.String("exchange", d.Exchange),
		slog.String("id", d.ID),
	)
	return nil
}

func (a *Archiver) upload(ctx context.Context, path string, buf *bytes.Buffer) error {
	if buf.Len() > multipartThreshold {
		return a.writer.PutMultipart(ctx, path, buf, minPartSize)
	}
	return a.writer.Put(ctx, path, buf, "application/json")
}

var _ domain.ResultSink = (*Archiver)(nil)
