package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const icyHeaderTimeout = 4 * time.Second

var icyHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DisableCompression:    true,
		ResponseHeaderTimeout: icyHeaderTimeout,
	},
}

// TitleWatcher follows the ICY metadata of a stream URL and reports track
// title changes. It holds its own connection; the audio pipe is untouched.
type TitleWatcher struct {
	ctx       context.Context
	cancel    context.CancelFunc
	body      io.ReadCloser
	updates   chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewTitleWatcher connects to the stream with metadata enabled. Stations
// that do not announce icy-metaint return an error and the caller meters
// without titles.
func NewTitleWatcher(rawURL string) (*TitleWatcher, error) {
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("User-Agent", "vudial")

	resp, err := icyHTTPClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	metaInt, err := parseMetaInt(resp.Header.Get("icy-metaint"))
	if err != nil {
		resp.Body.Close()
		cancel()
		return nil, err
	}

	w := &TitleWatcher{
		ctx:     ctx,
		cancel:  cancel,
		body:    resp.Body,
		updates: make(chan string, 1),
		done:    make(chan struct{}),
	}
	go w.run(metaInt)
	return w, nil
}

// Updates yields changed titles. The channel closes when the stream ends
// or the watcher is closed.
func (w *TitleWatcher) Updates() <-chan string {
	if w == nil {
		return nil
	}
	return w.updates
}

func (w *TitleWatcher) Close() error {
	var err error
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.cancel()
		if w.body != nil {
			err = w.body.Close()
		}
		<-w.done
	})
	return err
}

func (w *TitleWatcher) run(metaInt int) {
	defer close(w.done)
	defer close(w.updates)
	defer w.body.Close()

	var lastTitle string
	for {
		if _, err := io.CopyN(io.Discard, w.body, int64(metaInt)); err != nil {
			return
		}

		var metaLen [1]byte
		if _, err := io.ReadFull(w.body, metaLen[:]); err != nil {
			return
		}

		size := int(metaLen[0]) * 16
		if size == 0 {
			continue
		}

		block := make([]byte, size)
		if _, err := io.ReadFull(w.body, block); err != nil {
			return
		}

		title := parseStreamTitle(block)
		if title == "" || title == lastTitle {
			continue
		}
		lastTitle = title

		select {
		case w.updates <- title:
		case <-w.ctx.Done():
			return
		}
	}
}

func parseMetaInt(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("icy metadata not available")
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid icy-metaint")
	}
	return n, nil
}

// parseStreamTitle extracts the StreamTitle value from a metadata block,
// ignoring the zero padding the protocol pads blocks with.
func parseStreamTitle(block []byte) string {
	raw := strings.TrimRight(string(block), "\x00")
	if raw == "" {
		return ""
	}

	lower := strings.ToLower(raw)
	const marker = "streamtitle='"
	start := strings.Index(lower, marker)
	if start < 0 {
		return ""
	}
	start += len(marker)

	end := strings.Index(raw[start:], "'")
	if end < 0 {
		return ""
	}

	return strings.TrimSpace(raw[start : start+end])
}
