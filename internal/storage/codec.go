package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/plsd/internal/playlist"
)

const (
	magic   = "plsd-playlist"
	version = 1
)

// ErrMalformed is wrapped by every decoding failure.
var ErrMalformed = errors.New("malformed playlist record")

// Encode writes p in the record format.
func Encode(w io.Writer, p *playlist.Playlist) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s %d\n", magic, version)
	fmt.Fprintf(bw, "id %d\n", p.ID)
	fmt.Fprintf(bw, "name %s\n", strconv.Quote(p.Name))
	fmt.Fprintf(bw, "repeat %d\n", boolDigit(p.Repeat))
	fmt.Fprintf(bw, "shuffled %d\n", boolDigit(p.Shuffled()))
	fmt.Fprintf(bw, "size %d\n", p.Len())
	fmt.Fprintf(bw, "pool-start %d\n", p.PoolStart())

	slots := p.Slots()
	for i, id := range p.All() {
		fmt.Fprintf(bw, "%d,%s\n", slots[i], id)
	}

	return bw.Flush()
}

// Decode reads one record. The returned playlist is clean.
func Decode(r io.Reader) (*playlist.Playlist, error) {
	d := decoder{sc: bufio.NewScanner(r)}
	d.sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	header := d.line()
	if d.err == nil && header != fmt.Sprintf("%s %d", magic, version) {
		d.fail("unsupported header %q", header)
	}

	id := d.number("id")
	name := d.text("name")
	repeat := d.flag("repeat")
	shuffled := d.flag("shuffled")
	size := d.number("size")
	poolStart := d.number("pool-start")
	if d.err != nil {
		return nil, d.err
	}
	if id == 0 {
		return nil, fmt.Errorf("%w: id 0", ErrMalformed)
	}

	items := make([]string, 0, min(size, 4096))
	slots := make([]int, 0, min(size, 4096))
	for range size {
		slot, oid, ok := strings.Cut(d.line(), ",")
		if d.err != nil {
			return nil, d.err
		}
		n, err := strconv.Atoi(slot)
		if !ok || err != nil || oid == "" {
			return nil, fmt.Errorf("%w: bad item line %d", ErrMalformed, d.n)
		}
		slots = append(slots, n)
		items = append(items, oid)
	}

	if d.sc.Scan() {
		return nil, fmt.Errorf("%w: trailing data after %d items", ErrMalformed, size)
	}
	if err := d.sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if !shuffled {
		for i, s := range slots {
			if s != i {
				return nil, fmt.Errorf("%w: unshuffled item %d has slot %d", ErrMalformed, i, s)
			}
		}
	}

	p, err := playlist.Restore(uint32(id), name, repeat, items, shuffled, slots, int(poolStart))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p, nil
}

type decoder struct {
	sc  *bufio.Scanner
	n   int
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: line %d: %s", ErrMalformed, d.n, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) line() string {
	if d.err != nil {
		return ""
	}
	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			d.err = fmt.Errorf("%w: %v", ErrMalformed, err)
		} else {
			d.err = fmt.Errorf("%w: unexpected end of record after line %d", ErrMalformed, d.n)
		}
		return ""
	}
	d.n++
	return d.sc.Text()
}

func (d *decoder) field(key string) string {
	line := d.line()
	if d.err != nil {
		return ""
	}
	k, v, ok := strings.Cut(line, " ")
	if !ok || k != key {
		d.fail("expected %q", key)
		return ""
	}
	return v
}

func (d *decoder) number(key string) uint64 {
	v := d.field(key)
	if d.err != nil {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		d.fail("%s: %v", key, err)
	}
	return n
}

func (d *decoder) flag(key string) bool {
	switch v := d.field(key); v {
	case "0":
		return false
	case "1":
		return true
	default:
		d.fail("%s: want 0 or 1, got %q", key, v)
		return false
	}
}

func (d *decoder) text(key string) string {
	v := d.field(key)
	if d.err != nil {
		return ""
	}
	s, err := strconv.Unquote(v)
	if err != nil {
		d.fail("%s: %v", key, err)
	}
	return s
}

func boolDigit(b bool) int {
	if b {
		return 1
	}
	return 0
}
