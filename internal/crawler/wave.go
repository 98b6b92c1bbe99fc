package crawler

import (
	"sync"

	"github.com/nao1215/wavecrawl/internal/model"
)

// linkBuffer accumulates the URLs discovered during one wave. Tasks
// append concurrently; the scheduler drains it exactly once at the wave
// boundary, which permanently seals it.
//
// Sealing is what makes the grace period safe: a worker abandoned after
// a timeout may still be running when the scheduler moves on, but its
// late discoveries land in a sealed buffer and vanish instead of
// leaking into a wave that no longer exists.
type linkBuffer struct {
	mu     sync.Mutex
	urls   []string
	sealed bool
}

// newLinkBuffer creates an empty, unsealed buffer.
func newLinkBuffer() *linkBuffer {
	return &linkBuffer{urls: make([]string, 0)}
}

// add appends a URL. It reports whether the buffer accepted it; a
// sealed buffer rejects all writes.
func (b *linkBuffer) add(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return false
	}
	b.urls = append(b.urls, url)
	return true
}

// drain seals the buffer and returns everything it accepted.
func (b *linkBuffer) drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sealed = true
	urls := b.urls
	b.urls = nil
	return urls
}

// resultBuffer accumulates the per-page word results of one wave, with
// the same seal-on-drain contract as linkBuffer.
type resultBuffer struct {
	mu     sync.Mutex
	pages  []*model.PageWords
	sealed bool
}

// newResultBuffer creates an empty, unsealed buffer.
func newResultBuffer() *resultBuffer {
	return &resultBuffer{pages: make([]*model.PageWords, 0)}
}

// add appends a page result. It reports whether the buffer accepted it.
func (b *resultBuffer) add(page *model.PageWords) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return false
	}
	b.pages = append(b.pages, page)
	return true
}

// drain seals the buffer and returns everything it accepted.
func (b *resultBuffer) drain() []*model.PageWords {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sealed = true
	pages := b.pages
	b.pages = nil
	return pages
}
