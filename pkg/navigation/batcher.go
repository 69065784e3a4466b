package navigation

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/journeysink"
	"golang.org/x/exp/slices"
)

// breadcrumbBatcher buffers breadcrumbs for one journey. Delivery is at least
// once: a failed batch goes back to the front of the buffer for the next flush.
type breadcrumbBatcher struct {
	journeyID string
	sink      journeysink.Sink
	batchSize int

	mu     sync.Mutex
	buffer []journey.Breadcrumb

	// held for the whole of a flush so batches never interleave
	flushMu sync.Mutex
}

func newBreadcrumbBatcher(journeyID string, sink journeysink.Sink, batchSize int) *breadcrumbBatcher {
	return &breadcrumbBatcher{
		journeyID: journeyID,
		sink:      sink,
		batchSize: batchSize,
	}
}

// Add buffers the breadcrumb and reports whether the buffer is due a flush
func (b *breadcrumbBatcher) Add(breadcrumb journey.Breadcrumb) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buffer = append(b.buffer, breadcrumb)

	return len(b.buffer) >= b.batchSize
}

func (b *breadcrumbBatcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.buffer)
}

func (b *breadcrumbBatcher) Flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	batch := b.buffer
	b.buffer = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := b.sink.AppendBreadcrumbs(ctx, b.journeyID, batch); err != nil {
		b.mu.Lock()
		b.buffer = slices.Insert(b.buffer, 0, batch...)
		pending := len(b.buffer)
		b.mu.Unlock()

		log.Error().Err(err).
			Str("journey", b.journeyID).
			Int("batch", len(batch)).
			Int("pending", pending).
			Msg("Failed to upload breadcrumbs, keeping them for the next flush")

		return err
	}

	log.Debug().Str("journey", b.journeyID).Int("batch", len(batch)).Msg("Uploaded breadcrumbs")

	return nil
}
