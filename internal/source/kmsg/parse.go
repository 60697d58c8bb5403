package kmsg

import (
	"strconv"
	"strings"
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/model"
)

// Parser turns kernel log lines into diagnostics. It accepts the /dev/kmsg
// record format ("pri,seq,usec,flags;message") and the dmesg text format
// ("<pri>[seconds] message", priority optional). Lines in neither format
// become unparsed records carrying the raw text.
//
// Records without a kernel sequence number are numbered after the highest
// sequence seen so far. Unparsed records have a counter of their own so
// they never take a number the kernel will use.
type Parser struct {
	next     uint64
	unparsed uint64
	now      func() time.Time
}

// NewParser creates a parser stamping records with the wall clock.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Next is the sequence number the next unnumbered record will get.
func (p *Parser) Next() uint64 { return p.next }

// Parse parses one line. ok is false for blank lines and for the
// continuation lines (" KEY=value") that follow kmsg records.
func (p *Parser) Parse(line string) (d model.Diagnostic, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" || line[0] == ' ' || line[0] == '\t' {
		return model.Diagnostic{}, false
	}

	d = model.Diagnostic{Origin: model.OriginKernel, Severity: model.SevInfo, Time: p.now()}
	if parseRecord(line, &d) {
		if d.Seq >= p.next {
			p.next = d.Seq + 1
		}
		return d, true
	}

	if parseText(line, &d) {
		d.Seq = p.next
		p.next++
		return d, true
	}
	d = model.Diagnostic{
		Origin:   model.OriginKernel,
		Seq:      p.unparsed,
		Severity: model.SevInfo,
		Time:     d.Time,
		Message:  line,
		Unparsed: true,
	}
	p.unparsed++
	return d, true
}

// ParseRecord parses one read from /dev/kmsg, which may carry continuation
// lines after the first.
func (p *Parser) ParseRecord(rec string) (model.Diagnostic, bool) {
	if i := strings.IndexByte(rec, '\n'); i >= 0 {
		rec = rec[:i]
	}
	return p.Parse(rec)
}

// parseRecord handles "pri,seq,usec,flags[,more];message".
func parseRecord(line string, d *model.Diagnostic) bool {
	semi := strings.IndexByte(line, ';')
	if semi < 0 {
		return false
	}
	fields := strings.Split(line[:semi], ",")
	if len(fields) < 3 {
		return false
	}
	pri, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return false
	}
	seq, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return false
	}
	usec, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return false
	}
	setPriority(d, pri)
	d.Seq = seq
	d.Timestamp = time.Duration(usec) * time.Microsecond
	d.Message = unescape(line[semi+1:])
	return true
}

// parseText handles "<pri>[ seconds.micros] message" and "[seconds] message".
func parseText(line string, d *model.Diagnostic) bool {
	rest := line
	if strings.HasPrefix(rest, "<") {
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return false
		}
		pri, err := strconv.ParseUint(rest[1:end], 10, 16)
		if err != nil {
			return false
		}
		setPriority(d, pri)
		rest = rest[end+1:]
	}
	if !strings.HasPrefix(rest, "[") {
		return false
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return false
	}
	ts, ok := parseSeconds(strings.TrimSpace(rest[1:end]))
	if !ok {
		return false
	}
	d.Timestamp = ts
	d.Message = strings.TrimPrefix(rest[end+1:], " ")
	return true
}

func setPriority(d *model.Diagnostic, pri uint64) {
	d.Severity = model.Severity(pri & 7)
	d.Facility = uint8(pri >> 3)
}

// parseSeconds parses "12.345678" into a duration without float rounding.
func parseSeconds(s string) (time.Duration, bool) {
	whole, frac, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseUint(whole, 10, 32)
	if err != nil {
		return 0, false
	}
	d := time.Duration(sec) * time.Second
	if frac == "" {
		return d, true
	}
	if len(frac) > 9 {
		frac = frac[:9]
	}
	ns, err := strconv.ParseUint(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
	if err != nil {
		return 0, false
	}
	return d + time.Duration(ns), true
}

// unescape decodes the \xNN escapes kmsg uses for non-printable bytes.
func unescape(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
