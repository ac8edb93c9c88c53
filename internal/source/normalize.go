package source

import (
	"encoding/binary"
	"fmt"
	"io"
)

// monitorDecoder wraps a PCM decoder and presents the fixed monitor
// stream: 48 kHz two-channel s16le, linearly interpolated when the
// source rate differs, mono duplicated into both channels.
type monitorDecoder struct {
	src          Decoder
	passthrough  bool
	length       int64
	pos          int64
	srcRate      int
	srcChannels  int
	srcFrameSize int

	totalSrcFrames int64
	totalOutFrames int64
	outFramePos    int64
	srcPosNum      int64

	pending []byte
	outBuf  []byte
	srcBuf  []byte
	frames  []int16

	baseFrame int64
	tail      [MonitorChannels]int16
	haveTail  bool
}

// Normalize wraps src so it reads as monitor-format PCM.
func Normalize(src Decoder) (Decoder, error) {
	rate := src.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("unsupported sample rate: %d", rate)
	}
	channels := src.ChannelCount()
	if channels < 1 || channels > MonitorChannels {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}

	srcFrameSize := channels * monitorBytesPerSample
	totalSrcFrames := src.Length() / int64(srcFrameSize)
	totalOutFrames := totalSrcFrames * MonitorSampleRate / int64(rate)
	if totalSrcFrames > 0 && totalOutFrames == 0 {
		totalOutFrames = 1
	}

	d := &monitorDecoder{
		src:            src,
		passthrough:    rate == MonitorSampleRate && channels == MonitorChannels,
		length:         totalOutFrames * MonitorFrameSize,
		srcRate:        rate,
		srcChannels:    channels,
		srcFrameSize:   srcFrameSize,
		totalSrcFrames: totalSrcFrames,
		totalOutFrames: totalOutFrames,
	}
	if d.passthrough {
		d.length = src.Length()
		d.totalOutFrames = d.length / MonitorFrameSize
	}
	return d, nil
}

func (d *monitorDecoder) Length() int64     { return d.length }
func (d *monitorDecoder) SampleRate() int   { return MonitorSampleRate }
func (d *monitorDecoder) ChannelCount() int { return MonitorChannels }

func (d *monitorDecoder) Close() error { return closeDecoder(d.src) }

func (d *monitorDecoder) Read(p []byte) (int, error) {
	if d.passthrough {
		n, err := d.src.Read(p)
		d.pos += int64(n)
		return n, err
	}

	if len(d.pending) > 0 {
		n := copy(p, d.pending)
		d.pending = d.pending[n:]
		d.pos += int64(n)
		return n, nil
	}

	if d.outFramePos >= d.totalOutFrames {
		return 0, io.EOF
	}

	want := len(p) / MonitorFrameSize
	if len(p)%MonitorFrameSize != 0 {
		want++
	}
	if want == 0 {
		want = 1
	}
	if remaining := d.totalOutFrames - d.outFramePos; int64(want) > remaining {
		want = int(remaining)
	}

	raw, err := d.produceFrames(want)
	if len(raw) == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	n := copy(p, raw)
	if n < len(raw) {
		d.pending = append(d.pending[:0], raw[n:]...)
	}
	d.pos += int64(n)
	return n, nil
}

func (d *monitorDecoder) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = d.pos + offset
	case io.SeekEnd:
		next = d.length + offset
	default:
		return d.pos, fmt.Errorf("invalid seek whence: %d", whence)
	}

	if next < 0 {
		next = 0
	}
	if next > d.length {
		next = d.length
	}
	next -= next % MonitorFrameSize

	if d.passthrough {
		pos, err := d.src.Seek(next, io.SeekStart)
		if err != nil {
			return d.pos, err
		}
		d.pending = nil
		d.pos = pos
		return pos, nil
	}

	outFrame := next / MonitorFrameSize
	srcFrame := outFrame * int64(d.srcRate) / MonitorSampleRate
	if _, err := d.src.Seek(srcFrame*int64(d.srcFrameSize), io.SeekStart); err != nil {
		return d.pos, err
	}

	d.pending = nil
	d.pos = next
	d.outFramePos = outFrame
	d.srcPosNum = outFrame * int64(d.srcRate)
	d.frames = d.frames[:0]
	d.baseFrame = srcFrame
	d.haveTail = false
	return next, nil
}

// produceFrames interpolates up to frameCount monitor frames from the
// source stream.
func (d *monitorDecoder) produceFrames(frameCount int) ([]byte, error) {
	rawSize := frameCount * MonitorFrameSize
	if cap(d.outBuf) < rawSize {
		d.outBuf = make([]byte, rawSize)
	}
	raw := d.outBuf[:rawSize]

	written := 0
	for written < frameCount && d.outFramePos < d.totalOutFrames {
		srcFrame := d.srcPosNum / MonitorSampleRate
		if srcFrame >= d.totalSrcFrames {
			break
		}

		if err := d.ensureFrame(srcFrame); err != nil {
			return raw[:written*MonitorFrameSize], err
		}

		left0, right0, err := d.frameAt(srcFrame)
		if err != nil {
			return raw[:written*MonitorFrameSize], err
		}
		left1, right1 := left0, right0
		if srcFrame+1 < d.totalSrcFrames {
			if err := d.ensureFrame(srcFrame + 1); err != nil {
				return raw[:written*MonitorFrameSize], err
			}
			left1, right1, err = d.frameAt(srcFrame + 1)
			if err != nil {
				return raw[:written*MonitorFrameSize], err
			}
		}

		fracNum := d.srcPosNum % MonitorSampleRate
		off := written * MonitorFrameSize
		binary.LittleEndian.PutUint16(raw[off:], uint16(lerpSample(left0, left1, fracNum)))
		binary.LittleEndian.PutUint16(raw[off+2:], uint16(lerpSample(right0, right1, fracNum)))

		written++
		d.outFramePos++
		d.srcPosNum += int64(d.srcRate)
	}

	if written == 0 {
		return nil, io.EOF
	}
	return raw[:written*MonitorFrameSize], nil
}

func (d *monitorDecoder) ensureFrame(absFrame int64) error {
	if absFrame >= d.totalSrcFrames {
		return io.EOF
	}
	d.dropBefore(absFrame - 1)

	for absFrame >= d.baseFrame+int64(len(d.frames))/MonitorChannels {
		if err := d.refill(); err != nil {
			return err
		}
	}
	return nil
}

func (d *monitorDecoder) dropBefore(minKeep int64) {
	if minKeep <= d.baseFrame {
		return
	}
	available := int64(len(d.frames)) / MonitorChannels
	drop := minKeep - d.baseFrame
	if drop <= 0 {
		return
	}
	if drop >= available {
		d.frames = d.frames[:0]
		d.baseFrame += available
		return
	}

	dropSamples := int(drop) * MonitorChannels
	remaining := len(d.frames) - dropSamples
	copy(d.frames, d.frames[dropSamples:])
	d.frames = d.frames[:remaining]
	d.baseFrame += drop
}

func (d *monitorDecoder) refill() error {
	const chunkFrames = 2048

	readSize := chunkFrames * d.srcFrameSize
	if cap(d.srcBuf) < readSize {
		d.srcBuf = make([]byte, readSize)
	}
	buf := d.srcBuf[:readSize]

	n, err := d.src.Read(buf)
	if n == 0 {
		if err == nil {
			return io.EOF
		}
		return err
	}

	frameCount := n / d.srcFrameSize
	if frameCount == 0 {
		if err != nil {
			return err
		}
		return fmt.Errorf("decoder returned partial PCM frame")
	}
	if frameCount*d.srcFrameSize != n {
		return fmt.Errorf("decoder returned %d trailing bytes", n-frameCount*d.srcFrameSize)
	}

	oldLen := len(d.frames)
	needLen := oldLen + frameCount*MonitorChannels
	if cap(d.frames) < needLen {
		next := make([]int16, oldLen, max(needLen, oldLen*2+MonitorChannels))
		copy(next, d.frames)
		d.frames = next
	}
	d.frames = d.frames[:needLen]
	dst := d.frames[oldLen:needLen]

	switch d.srcChannels {
	case 1:
		for i := 0; i < frameCount; i++ {
			s := int16(binary.LittleEndian.Uint16(buf[i*2:]))
			dst[i*2] = s
			dst[i*2+1] = s
			d.tail[0] = s
			d.tail[1] = s
		}
	case 2:
		for i := 0; i < frameCount; i++ {
			off := i * MonitorFrameSize
			left := int16(binary.LittleEndian.Uint16(buf[off:]))
			right := int16(binary.LittleEndian.Uint16(buf[off+2:]))
			dst[i*2] = left
			dst[i*2+1] = right
			d.tail[0] = left
			d.tail[1] = right
		}
	default:
		return fmt.Errorf("unsupported channel count: %d", d.srcChannels)
	}

	d.haveTail = true
	return nil
}

func (d *monitorDecoder) frameAt(absFrame int64) (int16, int16, error) {
	if absFrame >= d.totalSrcFrames {
		if d.haveTail {
			return d.tail[0], d.tail[1], nil
		}
		return 0, 0, io.EOF
	}
	if absFrame < d.baseFrame {
		return 0, 0, fmt.Errorf("frame %d fell behind buffered source data", absFrame)
	}

	rel := absFrame - d.baseFrame
	off := int(rel) * MonitorChannels
	if off+1 >= len(d.frames) {
		return 0, 0, io.EOF
	}
	return d.frames[off], d.frames[off+1], nil
}

func lerpSample(a, b int16, fracNum int64) int16 {
	if fracNum == 0 || a == b {
		return a
	}
	diff := int64(int32(b) - int32(a))
	return int16(int64(int32(a)) + (diff*fracNum+MonitorSampleRate/2)/MonitorSampleRate)
}
