package snapshot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// FileSourceName is the exchange identifier of the file source.
const FileSourceName = "file"

// FileSource serves a snapshot stored in a local JSON file. The file is
// re-read on every fetch so it can be replaced between runs.
type FileSource struct {
	path string
	now  func() time.Time
}

// NewFileSource creates a source reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

// Name returns "file".
func (s *FileSource) Name() string { return FileSourceName }

// FetchSnapshot decodes the file. When the document carries no
// exchange_time the local clock is used instead.
func (s *FileSource) FetchSnapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.MarketSnapshot{}, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("snapshot: open %s: %w", s.path, err)
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	if snap.Exchange == "" {
		snap.Exchange = FileSourceName
	}
	if snap.ExchangeTime == 0 {
		snap.ExchangeTime = s.now().UnixMilli()
	}
	return snap, nil
}

var _ domain.MarketDataSource = (*FileSource)(nil)
