// Package audio plays a source through the system output while teeing
// the monitor stream into the metering tap, so the needle follows what
// the speakers are actually fed.
package audio

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/olivier-w/vudial/internal/source"
)

// tapReader wraps the monitor stream, counting bytes for position
// tracking and copying everything it passes along into the tap.
type tapReader struct {
	reader io.Reader
	tap    *source.Tap
	pos    int64
	mu     sync.Mutex
}

func (tr *tapReader) Read(p []byte) (int, error) {
	n, err := tr.reader.Read(p)
	if n > 0 {
		tr.tap.Write(p[:n])
	}
	tr.mu.Lock()
	tr.pos += int64(n)
	tr.mu.Unlock()
	return n, err
}

func (tr *tapReader) Pos() int64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.pos
}

func (tr *tapReader) SetPos(pos int64) {
	tr.mu.Lock()
	tr.pos = pos
	tr.mu.Unlock()
}

// Player manages audible playback of a monitor-format stream.
type Player struct {
	closer    io.Closer // file handle or decode subprocess
	dec       source.Decoder
	counter   *tapReader
	tap       *source.Tap
	otoCtx    *oto.Context
	otoPlayer *oto.Player
	duration  time.Duration
	channels  int
	seekable  bool
	volume    float64
	paused    bool
	done      chan struct{}
	mu        sync.Mutex
	closed    bool
}

var (
	globalOtoCtx *oto.Context
	otoOnce      sync.Once
	otoInitErr   error
)

func initOto() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   source.MonitorSampleRate,
			ChannelCount: source.MonitorChannels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		globalOtoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
		}
	})
	return globalOtoCtx, otoInitErr
}

// NewFile opens a local file with the in-process decoders and starts
// playing it. Channels reports the material's layout before the monitor
// upmix, which the meter needs for its mono-fold correction.
func NewFile(path string, tap *source.Tap) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec, err := source.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	channels := dec.ChannelCount()

	mon, err := source.Normalize(dec)
	if err != nil {
		f.Close()
		return nil, err
	}

	p, err := start(mon, f, tap, channels, true)
	if err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

// NewPipe plays a live monitor-format decoder (stream URL or an
// ffmpeg-decoded file). Pipes cannot seek and report no duration.
func NewPipe(dec source.Decoder, tap *source.Tap) (*Player, error) {
	closer, _ := dec.(io.Closer)
	return start(dec, closer, tap, source.MonitorChannels, false)
}

func start(dec source.Decoder, closer io.Closer, tap *source.Tap, channels int, seekable bool) (*Player, error) {
	ctx, err := initOto()
	if err != nil {
		return nil, err
	}

	var dur time.Duration
	if total := dec.Length(); total > 0 {
		dur = time.Duration(float64(total) / float64(source.MonitorBytesPerSec) * float64(time.Second))
	}

	cr := &tapReader{reader: dec, tap: tap}

	p := &Player{
		closer:   closer,
		dec:      dec,
		counter:  cr,
		tap:      tap,
		otoCtx:   ctx,
		duration: dur,
		channels: channels,
		seekable: seekable,
		volume:   0.8,
		done:     make(chan struct{}),
	}

	p.otoPlayer = ctx.NewPlayer(cr)
	p.otoPlayer.SetVolume(p.volume)
	p.otoPlayer.Play()

	go p.monitor(p.done)

	return p, nil
}

// monitor polls until playback finishes or the player is closed. It owns
// exactly one done channel; a restart supersedes it and it exits quietly.
func (p *Player) monitor(done chan struct{}) {
	for {
		p.mu.Lock()
		if p.closed || p.done != done {
			p.mu.Unlock()
			return
		}
		pos := p.counter.Pos()
		total := p.dec.Length()
		paused := p.paused
		playing := p.otoPlayer.IsPlaying()
		p.mu.Unlock()

		if !paused {
			if total >= 0 && pos >= total {
				close(done)
				return
			}
			// A live pipe has no length: it is over when the feed dried
			// up and the output device drained.
			if total < 0 && pos > 0 && !playing {
				close(done)
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// Done returns a channel that closes when playback finishes.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Restart seeks to the beginning and resumes playback.
// This resets the done channel so Done() can be used again.
func (p *Player) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.seekable || p.closed {
		return
	}

	p.dec.Seek(0, io.SeekStart)
	p.counter.SetPos(0)
	p.tap.Reset()

	p.otoPlayer.Pause()
	p.otoPlayer = p.otoCtx.NewPlayer(p.counter)
	p.otoPlayer.SetVolume(p.volume)

	p.done = make(chan struct{})
	p.paused = false
	p.otoPlayer.Play()

	go p.monitor(p.done)
}

// TogglePause toggles between play and pause.
func (p *Player) TogglePause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		p.otoPlayer.Play()
		p.paused = false
	} else {
		p.otoPlayer.Pause()
		p.paused = true
	}
}

// Paused returns whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Position returns the current playback position. For live pipes this is
// the elapsed listening time.
func (p *Player) Position() time.Duration {
	pos := p.counter.Pos()
	secs := float64(pos) / float64(source.MonitorBytesPerSec)
	return time.Duration(secs * float64(time.Second))
}

// Duration returns the total duration, zero when unknown.
func (p *Player) Duration() time.Duration {
	return p.duration
}

// Seekable reports whether transport controls work on this source.
func (p *Player) Seekable() bool {
	return p.seekable
}

// Seek moves playback by the given delta from the current position.
func (p *Player) Seek(delta time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.seekable || p.closed {
		return
	}

	deltaBytes := int64(delta.Seconds() * float64(source.MonitorBytesPerSec))
	newPos := p.counter.Pos() + deltaBytes

	if newPos < 0 {
		newPos = 0
	}
	if total := p.dec.Length(); newPos > total {
		newPos = total
	}
	newPos -= newPos % source.MonitorFrameSize

	if _, err := p.dec.Seek(newPos, io.SeekStart); err != nil {
		return
	}
	p.counter.SetPos(newPos)
	p.tap.Reset()

	// Recreate the oto player to flush its buffer.
	wasPaused := p.paused
	p.otoPlayer.Pause()
	p.otoPlayer = p.otoCtx.NewPlayer(p.counter)
	p.otoPlayer.SetVolume(p.volume)
	if !wasPaused {
		p.otoPlayer.Play()
	}
}

// Volume returns current volume (0.0 to 1.0).
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume sets volume (clamped to 0.0 - 1.0).
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.volume = v
	p.otoPlayer.SetVolume(v)
}

// AdjustVolume adjusts volume by delta.
func (p *Player) AdjustVolume(delta float64) {
	p.mu.Lock()
	v := p.volume + delta
	p.mu.Unlock()
	p.SetVolume(v)
}

// Tap returns the metering tap this player feeds.
func (p *Player) Tap() *source.Tap { return p.tap }

// SampleRate reports the monitor rate the tap carries.
func (p *Player) SampleRate() int { return source.MonitorSampleRate }

// Channels reports the channel count of the underlying material.
func (p *Player) Channels() int { return p.channels }

// Close releases the output device slot and the underlying source.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.otoPlayer.Pause()
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
