// internal/extract/extract.go
package extract

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strings"
)

var ipv4Re = regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)

// LineClassifier returns the address a log line is attributed to, if any
type LineClassifier func(line string) (string, bool)

// IPv4 returns the leftmost dotted-quad token in the line.
// Octets are not range checked; "999.1.1.1" counts as an address.
func IPv4(line string) (string, bool) {
	ip := ipv4Re.FindString(line)
	return ip, ip != ""
}

// IPRecord is the per-address aggregate for one invocation
type IPRecord struct {
	IP      string
	Count   int
	Samples []string
}

// Tally maps IP to record, iterating in first-seen order
type Tally struct {
	records map[string]*IPRecord
	order   []*IPRecord
	lines   int
}

// NewTally creates an empty tally
func NewTally() *Tally {
	return &Tally{records: make(map[string]*IPRecord)}
}

// Add counts one line for ip and samples it while under the cap
func (t *Tally) Add(ip, line string, contextLines int) {
	rec, ok := t.records[ip]
	if !ok {
		rec = &IPRecord{IP: ip}
		t.records[ip] = rec
		t.order = append(t.order, rec)
	}
	rec.Count++
	t.lines++
	if len(rec.Samples) < contextLines {
		rec.Samples = append(rec.Samples, line)
	}
}

// Get returns the record for ip
func (t *Tally) Get(ip string) (*IPRecord, bool) {
	rec, ok := t.records[ip]
	return rec, ok
}

// Len is the number of unique IPs
func (t *Tally) Len() int {
	return len(t.order)
}

// Lines is the number of lines attributed to some IP
func (t *Tally) Lines() int {
	return t.lines
}

// Records returns all records in first-seen order
func (t *Tally) Records() []*IPRecord {
	return t.order
}

// Scan reads r line by line and tallies every line the classifier matches.
// Sampled lines are whitespace-trimmed.
func Scan(r io.Reader, classify LineClassifier, contextLines int) (*Tally, error) {
	if classify == nil {
		classify = IPv4
	}

	t := NewTally()
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if ip, ok := classify(line); ok {
				t.Add(ip, strings.TrimSpace(line), contextLines)
			}
		}
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Triage returns the records whose count strictly exceeds threshold,
// in first-seen order
func Triage(t *Tally, threshold int) []*IPRecord {
	var suspicious []*IPRecord
	for _, rec := range t.order {
		if rec.Count > threshold {
			suspicious = append(suspicious, rec)
		}
	}
	return suspicious
}
