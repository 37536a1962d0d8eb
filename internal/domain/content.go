package domain

import (
	"regexp"
	"strings"
)

// SegmentKind identifies a piece of materialized message content.
type SegmentKind string

const (
	SegmentText   SegmentKind = "text"
	SegmentFile   SegmentKind = "file"
	SegmentWidget SegmentKind = "widget"
)

// Segment is one parsed piece of model output.
type Segment struct {
	Kind SegmentKind `json:"kind"`

	// Text is set for SegmentText.
	Text string `json:"text,omitempty"`

	// File fields are set for SegmentFile.
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`

	// Widget fields are set for SegmentWidget.
	WidgetType string `json:"widgetType,omitempty"`
	Content    string `json:"content,omitempty"`
}

// Wire tokens:
//
//	$$$FILE:::<name>:::<mimeType>$$$<data>$$$END_FILE$$$
//	$$$UI:<TYPE>:::<content>$$$
var markerRe = regexp.MustCompile(
	`(?s)\$\$\$FILE:::(.*?):::(.*?)\$\$\$(.*?)\$\$\$END_FILE\$\$\$` +
		`|\$\$\$UI:([A-Za-z0-9_-]+):::(.*?)\$\$\$`)

// ParseContent splits materialized content into text, file and widget segments.
// It must only be called on a message that is no longer streaming: a token cut
// in half by a chunk boundary is left as plain text.
func ParseContent(content string) []Segment {
	var segments []Segment
	last := 0
	for _, m := range markerRe.FindAllStringSubmatchIndex(content, -1) {
		if m[0] > last {
			segments = appendText(segments, content[last:m[0]])
		}
		if m[2] >= 0 {
			segments = append(segments, Segment{
				Kind:     SegmentFile,
				FileName: strings.TrimSpace(content[m[2]:m[3]]),
				MimeType: strings.TrimSpace(content[m[4]:m[5]]),
				Data:     strings.TrimSpace(content[m[6]:m[7]]),
			})
		} else {
			segments = append(segments, Segment{
				Kind:       SegmentWidget,
				WidgetType: strings.ToUpper(content[m[8]:m[9]]),
				Content:    strings.TrimSpace(content[m[10]:m[11]]),
			})
		}
		last = m[1]
	}
	if last < len(content) {
		segments = appendText(segments, content[last:])
	}
	return segments
}

// ExtractFiles returns the file segments of materialized content.
func ExtractFiles(content string) []Segment {
	var files []Segment
	for _, s := range ParseContent(content) {
		if s.Kind == SegmentFile {
			files = append(files, s)
		}
	}
	return files
}

func appendText(segments []Segment, text string) []Segment {
	if strings.TrimSpace(text) == "" {
		return segments
	}
	return append(segments, Segment{Kind: SegmentText, Text: text})
}
