package source

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// pipeDecoder adapts a decode or capture subprocess to the Decoder
// interface. The subprocess emits monitor-format PCM on stdout.
type pipeDecoder struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	waitDone  chan struct{}
	closeOnce sync.Once
}

func startPipe(name string, args []string) (*pipeDecoder, error) {
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH", name)
	}

	cmd := exec.Command(bin, args...)
	cmd.Stdin = nil
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("setting up %s pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	d := &pipeDecoder{
		cmd:      cmd,
		stdout:   stdout,
		waitDone: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(d.waitDone)
	}()
	return d, nil
}

func (d *pipeDecoder) Read(p []byte) (int, error) { return d.stdout.Read(p) }

func (d *pipeDecoder) Seek(int64, int) (int64, error) {
	return 0, fmt.Errorf("live source is not seekable")
}

func (d *pipeDecoder) Length() int64     { return -1 }
func (d *pipeDecoder) SampleRate() int   { return MonitorSampleRate }
func (d *pipeDecoder) ChannelCount() int { return MonitorChannels }

func (d *pipeDecoder) Close() error {
	d.closeOnce.Do(func() {
		if d.stdout != nil {
			_ = d.stdout.Close()
		}
		if d.cmd != nil && d.cmd.Process != nil {
			_ = d.cmd.Process.Kill()
		}
		<-d.waitDone
	})
	return nil
}

// monitorOutputArgs are the ffmpeg output flags that produce the
// monitor stream on stdout.
func monitorOutputArgs() []string {
	return []string{
		"-vn",
		"-ac", strconv.Itoa(MonitorChannels),
		"-ar", strconv.Itoa(MonitorSampleRate),
		"-f", "s16le",
		"pipe:1",
	}
}

// NewStreamDecoder opens a live HTTP(S) stream through an ffmpeg pipe,
// reconnecting on network hiccups.
func NewStreamDecoder(url string) (Decoder, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", url,
	}
	args = append(args, monitorOutputArgs()...)
	return startPipe("ffmpeg", args)
}

// NewTranscodeDecoder decodes a local file ffmpeg can read but the
// in-process decoders cannot (AAC and friends).
func NewTranscodeDecoder(path string) (Decoder, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
	}
	args = append(args, monitorOutputArgs()...)
	return startPipe("ffmpeg", args)
}

// NewDeviceDecoder opens an audio capture device. An empty device name
// selects the platform default where one exists.
func NewDeviceDecoder(device string) (Decoder, error) {
	name, args, err := captureCommand(runtime.GOOS, device)
	if err != nil {
		return nil, err
	}
	return startPipe(name, args)
}

// captureCommand builds the per-platform capture invocation: arecord on
// Linux, ffmpeg with avfoundation on macOS, ffmpeg with dshow on Windows.
func captureCommand(goos, device string) (string, []string, error) {
	switch goos {
	case "linux":
		if device == "" {
			device = "default"
		}
		return "arecord", []string{
			"-D", device,
			"-f", "S16_LE",
			"-r", strconv.Itoa(MonitorSampleRate),
			"-c", strconv.Itoa(MonitorChannels),
			"-t", "raw",
			"-q",
			"-",
		}, nil
	case "darwin":
		if device == "" {
			device = "0"
		}
		if !strings.HasPrefix(device, ":") {
			device = ":" + device
		}
		args := []string{
			"-nostdin",
			"-hide_banner",
			"-loglevel", "error",
			"-f", "avfoundation",
			"-i", device,
		}
		return "ffmpeg", append(args, monitorOutputArgs()...), nil
	case "windows":
		if device == "" {
			return "", nil, fmt.Errorf("capture device name required on Windows")
		}
		if !strings.HasPrefix(device, "audio=") {
			device = "audio=" + device
		}
		args := []string{
			"-nostdin",
			"-hide_banner",
			"-loglevel", "error",
			"-f", "dshow",
			"-i", device,
		}
		return "ffmpeg", append(args, monitorOutputArgs()...), nil
	default:
		return "", nil, fmt.Errorf("audio capture not supported on %s", goos)
	}
}

// Pump drains a meter-only decoder into the tap. Capture devices are
// pumped rather than played: routing a microphone back out of the
// speakers would feed back.
type Pump struct {
	dec  Decoder
	tap  *Tap
	done chan struct{}
	once sync.Once
}

// NewPump starts draining dec into tap in the background.
func NewPump(dec Decoder, tap *Tap) *Pump {
	p := &Pump{
		dec:  dec,
		tap:  tap,
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Pump) run() {
	buf := make([]byte, 4096)
	for {
		n, err := p.dec.Read(buf)
		if n > 0 {
			p.tap.Write(buf[:n])
		}
		if err != nil {
			close(p.done)
			return
		}
	}
}

// Done closes when the producer stops delivering audio.
func (p *Pump) Done() <-chan struct{} { return p.done }

func (p *Pump) Tap() *Tap       { return p.tap }
func (p *Pump) SampleRate() int { return MonitorSampleRate }
func (p *Pump) Channels() int   { return MonitorChannels }

func (p *Pump) Close() error {
	var err error
	p.once.Do(func() {
		err = closeDecoder(p.dec)
	})
	return err
}
