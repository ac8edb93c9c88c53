package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/olivier-w/vudial/internal/audio"
	"github.com/olivier-w/vudial/internal/source"
)

// opened bundles a running source: the tap the meter reads, the player or
// pump feeding it, and what the header should say about it.
type opened struct {
	tap     *source.Tap
	player  *audio.Player
	pump    *source.Pump
	watcher *source.TitleWatcher

	title    string
	detail   string
	rate     int
	channels int
}

func (o *opened) close() {
	if o.watcher != nil {
		o.watcher.Close()
	}
	if o.player != nil {
		o.player.Close()
	}
	if o.pump != nil {
		o.pump.Close()
	}
}

func openSource(arg string, tap *source.Tap) (*opened, error) {
	switch source.Classify(arg) {
	case source.KindStream:
		return openStream(arg, tap)
	case source.KindDevice:
		return openDevice(arg, tap)
	default:
		return openFile(arg, tap)
	}
}

func openFile(path string, tap *source.Tap) (*opened, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case source.IsNativeExt(ext):
		p, err := audio.NewFile(path, tap)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		meta := audio.ReadMetadata(path)
		return &opened{
			tap:      tap,
			player:   p,
			title:    meta.Title,
			detail:   metaDetail(meta),
			rate:     p.SampleRate(),
			channels: p.Channels(),
		}, nil

	case source.IsTranscodeExt(ext):
		dec, err := source.NewTranscodeDecoder(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		p, err := audio.NewPipe(dec, tap)
		if err != nil {
			closeIfCloser(dec)
			return nil, err
		}
		meta := audio.ReadMetadata(path)
		return &opened{
			tap:      tap,
			player:   p,
			title:    meta.Title,
			detail:   metaDetail(meta),
			rate:     p.SampleRate(),
			channels: p.Channels(),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported format %s (supported: %s)", ext, source.SupportedExtsList())
	}
}

func openStream(rawURL string, tap *source.Tap) (*opened, error) {
	dec, err := source.NewStreamDecoder(rawURL)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	p, err := audio.NewPipe(dec, tap)
	if err != nil {
		closeIfCloser(dec)
		return nil, err
	}

	o := &opened{
		tap:      tap,
		player:   p,
		title:    streamTitle(rawURL),
		detail:   "live stream",
		rate:     p.SampleRate(),
		channels: p.Channels(),
	}
	// Separate connection for ICY now-playing titles. Streams without
	// metadata keep the URL-derived title.
	if tw, err := source.NewTitleWatcher(rawURL); err == nil {
		o.watcher = tw
	}
	return o, nil
}

func openDevice(arg string, tap *source.Tap) (*opened, error) {
	name := source.DeviceName(arg)
	dec, err := source.NewDeviceDecoder(name)
	if err != nil {
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	pump := source.NewPump(dec, tap)
	return &opened{
		tap:      tap,
		pump:     pump,
		title:    name,
		detail:   "capture device",
		rate:     pump.SampleRate(),
		channels: pump.Channels(),
	}, nil
}

func metaDetail(meta audio.Metadata) string {
	switch {
	case meta.Artist != "" && meta.Album != "":
		return meta.Artist + " · " + meta.Album
	case meta.Artist != "":
		return meta.Artist
	default:
		return meta.Album
	}
}

func streamTitle(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return rawURL
}

func closeIfCloser(dec source.Decoder) {
	if c, ok := dec.(io.Closer); ok {
		c.Close()
	}
}
