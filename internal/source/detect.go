package source

import "strings"

// Kind classifies a source argument.
type Kind int

const (
	KindFile Kind = iota
	KindStream
	KindDevice
)

var nativeExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

var transcodeExts = map[string]bool{
	".aac": true,
	".m4a": true,
	".m4b": true,
}

// Classify decides how an input argument should be opened: a URL streams
// through ffmpeg, a device: or ALSA-style name captures, anything else is
// a file path.
func Classify(arg string) Kind {
	lower := strings.ToLower(arg)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindStream
	case strings.HasPrefix(lower, "device:"),
		strings.HasPrefix(arg, "hw:"),
		strings.HasPrefix(arg, "plughw:"),
		arg == "default",
		strings.HasPrefix(arg, "default:"):
		return KindDevice
	default:
		return KindFile
	}
}

// DeviceName strips the device: prefix from a device argument.
func DeviceName(arg string) string {
	return strings.TrimPrefix(arg, "device:")
}

// IsNativeExt reports whether files with this extension decode in process.
func IsNativeExt(ext string) bool {
	return nativeExts[strings.ToLower(ext)]
}

// IsTranscodeExt reports whether files with this extension go through ffmpeg.
func IsTranscodeExt(ext string) bool {
	return transcodeExts[strings.ToLower(ext)]
}

// SupportedExtsList returns a human-readable list of playable file formats.
func SupportedExtsList() string {
	return ".mp3, .wav, .flac, .ogg, .aac, .m4a, .m4b"
}
