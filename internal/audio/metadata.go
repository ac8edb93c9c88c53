package audio

import (
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"
)

// Metadata holds source information for the header line.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// ReadMetadata pulls title, artist and album from the file's tags: ID3v2
// for MP3, vorbis comments for FLAC. Whatever the tags leave blank keeps
// its zero value, except the title, which falls back to the filename.
func ReadMetadata(path string) Metadata {
	var m Metadata
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		m = readID3(path)
	case ".flac":
		m = readVorbisComment(path)
	}
	if m.Title == "" {
		base := filepath.Base(path)
		m.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return m
}

func readID3(path string) Metadata {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Metadata{}
	}
	defer tag.Close()
	return Metadata{
		Title:  strings.TrimSpace(tag.Title()),
		Artist: strings.TrimSpace(tag.Artist()),
		Album:  strings.TrimSpace(tag.Album()),
	}
}

func readVorbisComment(path string) Metadata {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return Metadata{}
	}
	defer stream.Close()

	var m Metadata
	for _, block := range stream.Blocks {
		vc, ok := block.Body.(*meta.VorbisComment)
		if !ok {
			continue
		}
		for _, tag := range vc.Tags {
			value := strings.TrimSpace(tag[1])
			switch strings.ToUpper(tag[0]) {
			case "TITLE":
				m.Title = value
			case "ARTIST":
				m.Artist = value
			case "ALBUM":
				m.Album = value
			}
		}
	}
	return m
}
