// package formatter renders playlists for the terminal and exports them to files (text, CSV, JSON, M3U)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/plsd/internal/shared"
	"github.com/desertthunder/plsd/internal/source"
)

// Summary describes one playlist in a listing.
type Summary struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Size     uint32 `json:"size"`
	Repeat   bool   `json:"repeat"`
	Shuffled bool   `json:"shuffled"`
}

// Detail is a playlist together with its items in visual order.
type Detail struct {
	Summary
	Items []string `json:"items"`
}

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatM3U  Format = "m3u"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatCSV, FormatJSON, FormatM3U:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want text, csv, json or m3u)", shared.ErrInvalidFlag, s)
	}
}

// Ext returns the file extension used for exports in f.
func (f Format) Ext() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// ListToText renders one line per playlist.
func ListToText(list []Summary, p Painter) []byte {
	var buf bytes.Buffer
	if len(list) == 0 {
		buf.WriteString(p.Help("no playlists") + "\n")
		return buf.Bytes()
	}

	width := len(strconv.FormatUint(uint64(list[len(list)-1].ID), 10))
	for _, s := range list {
		fmt.Fprintf(&buf, "%*d  %s %s%s\n", width, s.ID, p.Title(s.Name), p.Help(items(s.Size)), flags(s, p))
	}
	return buf.Bytes()
}

// DetailToText renders a header followed by the numbered items.
func DetailToText(d Detail, p Painter) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", p.Title(d.Name))
	fmt.Fprintf(&buf, "id %d, %s%s\n", d.ID, items(d.Size), flags(d.Summary, p))
	if len(d.Items) > 0 {
		buf.WriteString("\n")
	}

	width := len(strconv.Itoa(max(len(d.Items)-1, 0)))
	for i, item := range d.Items {
		fmt.Fprintf(&buf, "%*d  %s\n", width, i, item)
	}
	return buf.Bytes()
}

func items(n uint32) string {
	if n == 1 {
		return "(1 item)"
	}
	return fmt.Sprintf("(%d items)", n)
}

func flags(s Summary, p Painter) string {
	var out string
	if s.Repeat {
		out += " " + p.OK("[repeat]")
	}
	if s.Shuffled {
		out += " " + p.Warn("[shuffled]")
	}
	return out
}

// ListToCSV converts a listing to CSV with columns: ID, Name, Size, Repeat, Shuffled
func ListToCSV(list []Summary) ([]byte, error) {
	records := make([][]string, 0, len(list))
	for _, s := range list {
		records = append(records, []string{
			strconv.FormatUint(uint64(s.ID), 10),
			s.Name,
			strconv.FormatUint(uint64(s.Size), 10),
			strconv.FormatBool(s.Repeat),
			strconv.FormatBool(s.Shuffled),
		})
	}
	return writeCSV([]string{"ID", "Name", "Size", "Repeat", "Shuffled"}, records)
}

// DetailToCSV converts a playlist's items to CSV with columns: Index, ObjectID
func DetailToCSV(d Detail) ([]byte, error) {
	records := make([][]string, 0, len(d.Items))
	for i, item := range d.Items {
		records = append(records, []string{strconv.Itoa(i), item})
	}
	return writeCSV([]string{"Index", "ObjectID"}, records)
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ToJSON renders v as indented JSON followed by a newline.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// DetailToM3U writes an extended M3U playlist. Local file objects become paths; other URIs are kept.
func DetailToM3U(d Detail) []byte {
	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	fmt.Fprintf(&buf, "#PLAYLIST:%s\n", d.Name)
	for _, item := range d.Items {
		buf.WriteString(m3uEntry(item) + "\n")
	}
	return buf.Bytes()
}

func m3uEntry(objectID string) string {
	uri, ok := strings.CutPrefix(objectID, source.ObjectPrefix)
	if !ok {
		return objectID
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return u.Path
}

// Render encodes a playlist in f. The painter only applies to text.
func Render(d Detail, f Format, p Painter) ([]byte, error) {
	switch f {
	case FormatCSV:
		return DetailToCSV(d)
	case FormatJSON:
		return ToJSON(d)
	case FormatM3U:
		return DetailToM3U(d), nil
	default:
		return DetailToText(d, p), nil
	}
}

// RenderList encodes a listing in f. M3U is not available for listings.
func RenderList(list []Summary, f Format, p Painter) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ListToCSV(list)
	case FormatJSON:
		if list == nil {
			list = []Summary{}
		}
		return ToJSON(list)
	case FormatM3U:
		return nil, fmt.Errorf("%w: m3u output needs a single playlist", shared.ErrInvalidFlag)
	default:
		return ListToText(list, p), nil
	}
}

// WriteExport writes a playlist to path in f.
//
// Defaults to {id}_items.{ext} as the filename.
func WriteExport(d Detail, f Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%d_items.%s", d.ID, f.Ext())
	}

	data, err := Render(d, f, Plain{})
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
