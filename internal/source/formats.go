package source

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

func parseM3U(data []byte, dir string) (*Result, error) {
	res := &Result{}
	sc := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if name, ok := strings.CutPrefix(line, "#PLAYLIST:"); ok {
			res.Name = strings.TrimSpace(name)
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res.add(line, dir)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func parsePLS(data []byte, dir string) (*Result, error) {
	type entry struct {
		n    int
		file string
	}

	var (
		entries []entry
		header  bool
		title   string
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.EqualFold(line, "[playlist]") {
			header = true
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(strings.ToLower(key), "file"):
			n, err := strconv.Atoi(key[len("file"):])
			if err != nil {
				return nil, fmt.Errorf("bad entry key %q", key)
			}
			entries = append(entries, entry{n: n, file: value})
		case strings.EqualFold(key, "X-GNOME-Title"):
			title = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, fmt.Errorf("missing [playlist] section")
	}

	slices.SortStableFunc(entries, func(a, b entry) int { return cmp.Compare(a.n, b.n) })

	res := &Result{Name: title}
	for _, e := range entries {
		res.add(e.file, dir)
	}
	return res, nil
}

// wpl is the Windows Media Player playlist document.
type wpl struct {
	XMLName xml.Name `xml:"smil"`
	Head    struct {
		Title string `xml:"title"`
	} `xml:"head"`
	Body struct {
		Seq struct {
			Media []struct {
				Src string `xml:"src,attr"`
			} `xml:"media"`
		} `xml:"seq"`
	} `xml:"body"`
}

func parseWPL(data []byte, dir string) (*Result, error) {
	var doc wpl
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	res := &Result{Name: strings.TrimSpace(doc.Head.Title)}
	for _, m := range doc.Body.Seq.Media {
		res.add(m.Src, dir)
	}
	return res, nil
}
