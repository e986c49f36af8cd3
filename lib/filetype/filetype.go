// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filetype classifies files into the closed set of content
// categories the ingestion pipeline accepts. Classification looks only
// at the path, never at file contents, so unsupported files are
// rejected before any bytes are read.
package filetype

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Type is a content category. The zero value is not a valid category.
type Type uint8

const (
	// Doc covers text and office documents.
	Doc Type = iota + 1
	// Image covers raster image formats.
	Image
	// Video covers container video formats.
	Video
	// Audio covers encoded audio formats.
	Audio
)

// ErrUnsupported is returned when a path has no extension or its
// extension is not in the classification table.
var ErrUnsupported = errors.New("unsupported file type")

// extensions maps a lower-cased extension (without the dot) to its
// category. This table is the whole policy.
var extensions = map[string]Type{
	"doc":  Doc,
	"docx": Doc,
	"pdf":  Doc,
	"txt":  Doc,
	"jpg":  Image,
	"jpeg": Image,
	"png":  Image,
	"gif":  Image,
	"mp4":  Video,
	"avi":  Video,
	"mov":  Video,
	"mp3":  Audio,
	"wav":  Audio,
	"ogg":  Audio,
}

// Classify returns the category for path based on its lower-cased
// extension. A leading dot on the base name does not start an
// extension (".txt" has none), and a trailing dot yields an empty
// extension; both are unsupported.
func Classify(path string) (Type, error) {
	base := filepath.Base(path)
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 || dot == len(base)-1 {
		return 0, fmt.Errorf("%w: %q has no extension", ErrUnsupported, base)
	}

	extension := strings.ToLower(base[dot+1:])
	fileType, ok := extensions[extension]
	if !ok {
		return 0, fmt.Errorf("%w: extension %q", ErrUnsupported, extension)
	}
	return fileType, nil
}

// String returns the canonical name of the category ("Doc", "Image",
// "Video", "Audio"). These names are the wire form in manifest logs.
func (t Type) String() string {
	switch t {
	case Doc:
		return "Doc"
	case Image:
		return "Image"
	case Video:
		return "Video"
	case Audio:
		return "Audio"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Parse parses a canonical category name.
func Parse(name string) (Type, error) {
	switch name {
	case "Doc":
		return Doc, nil
	case "Image":
		return Image, nil
	case "Video":
		return Video, nil
	case "Audio":
		return Audio, nil
	default:
		return 0, fmt.Errorf("unknown file type %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler. Invalid categories
// fail rather than producing a name that Parse would reject.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid file type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Valid reports whether t is one of the four defined categories.
func (t Type) Valid() bool {
	return t >= Doc && t <= Audio
}

// All returns every category in declaration order.
func All() []Type {
	return []Type{Doc, Image, Video, Audio}
}

// Extensions returns the sorted extensions that classify as t.
func Extensions(t Type) []string {
	var result []string
	for extension, fileType := range extensions {
		if fileType == t {
			result = append(result, extension)
		}
	}
	sort.Strings(result)
	return result
}
