// Package source turns files, stream URLs and capture devices into a
// uniform monitor stream: 48 kHz two-channel s16le PCM. The playback
// monitor and the metering tap both consume that one format.
package source

import "io"

const (
	MonitorSampleRate = 48000
	MonitorChannels   = 2

	monitorBytesPerSample = 2

	// MonitorFrameSize is the byte size of one interleaved sample frame.
	MonitorFrameSize = MonitorChannels * monitorBytesPerSample

	// MonitorBytesPerSec converts monitor byte positions to time.
	MonitorBytesPerSec = MonitorSampleRate * MonitorChannels * monitorBytesPerSample
)

// Decoder is implemented by all format-specific PCM decoders. Read yields
// s16le interleaved PCM in the decoder's native rate and channel layout.
// Live decoders return -1 from Length and reject Seek.
type Decoder interface {
	io.ReadSeeker
	Length() int64
	SampleRate() int
	ChannelCount() int
}

// Source is the sample-window provider seen by the metering loop.
// SampleRate reports the monitor rate; Channels reports the channel count
// of the underlying material before any monitor upmix, which decides
// whether a mono fold needs level correction.
type Source interface {
	Tap() *Tap
	SampleRate() int
	Channels() int
	Close() error
}

// closeDecoder releases a decoder's subprocess or handle if it has one.
func closeDecoder(d Decoder) error {
	if c, ok := d.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
