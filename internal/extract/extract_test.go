// internal/extract/extract_test.go
package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeatLine(ip string, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s - - [03/Feb/2026:12:00:%02d +0000] \"GET /item/%d HTTP/1.1\" 200 512\n", ip, i%60, i)
	}
	return b.String()
}

func TestIPv4(t *testing.T) {
	tests := []struct {
		line   string
		wantIP string
		wantOK bool
	}{
		{`10.0.0.5 - - "GET / HTTP/1.1" 200`, "10.0.0.5", true},
		{`client=192.168.1.20 upstream=10.0.0.1`, "192.168.1.20", true},
		{`GET /index.html from nowhere`, "", false},
		{`version 1.2.3 only`, "", false},
		{``, "", false},
	}

	for _, tt := range tests {
		ip, ok := IPv4(tt.line)
		assert.Equal(t, tt.wantOK, ok, "IPv4(%q)", tt.line)
		assert.Equal(t, tt.wantIP, ip, "IPv4(%q)", tt.line)
	}
}

func TestScanNoAddresses(t *testing.T) {
	log := "no addresses here\nnor here\n\n"

	tally, err := Scan(strings.NewReader(log), IPv4, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, tally.Len())
	assert.Empty(t, Triage(tally, 15))
}

func TestScanSampleCap(t *testing.T) {
	log := repeatLine("10.0.0.1", 25) + repeatLine("10.0.0.2", 3)

	tally, err := Scan(strings.NewReader(log), IPv4, 20)
	require.NoError(t, err)

	rec, ok := tally.Get("10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, 25, rec.Count)
	require.Len(t, rec.Samples, 20)
	// The first lines are kept, later ones dropped
	assert.Contains(t, rec.Samples[0], "/item/0 ")
	assert.Contains(t, rec.Samples[19], "/item/19 ")

	rec, ok = tally.Get("10.0.0.2")
	require.True(t, ok)
	assert.Equal(t, 3, rec.Count)
	assert.Len(t, rec.Samples, 3)
	assert.Equal(t, 28, tally.Lines())
}

func TestScanTrimsAndSkips(t *testing.T) {
	log := "   10.0.0.7 GET /a   \r\n" +
		"header line without address\n" +
		"10.0.0.7 GET /b" // no trailing newline

	tally, err := Scan(strings.NewReader(log), IPv4, 20)
	require.NoError(t, err)

	rec, ok := tally.Get("10.0.0.7")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Count)
	assert.Equal(t, []string{"10.0.0.7 GET /a", "10.0.0.7 GET /b"}, rec.Samples)
	assert.Equal(t, 2, tally.Lines())
}

func TestScanLongLine(t *testing.T) {
	long := "10.1.1.1 " + strings.Repeat("x", 256*1024) + "\n"

	tally, err := Scan(strings.NewReader(long), IPv4, 20)
	require.NoError(t, err)
	rec, ok := tally.Get("10.1.1.1")
	require.True(t, ok)
	assert.Equal(t, 1, rec.Count)
}

func TestScanCustomClassifier(t *testing.T) {
	// Attribute lines by the trailing user field instead of address
	byUser := func(line string) (string, bool) {
		idx := strings.LastIndex(line, "user=")
		if idx < 0 {
			return "", false
		}
		return strings.TrimSpace(line[idx+5:]), true
	}
	log := "login user=alice\nlogin user=bob\nlogout user=alice\n"

	tally, err := Scan(strings.NewReader(log), byUser, 20)
	require.NoError(t, err)
	require.Equal(t, 2, tally.Len())
	assert.Equal(t, "alice", tally.Records()[0].IP)
	assert.Equal(t, 2, tally.Records()[0].Count)
}

func TestScanIdempotent(t *testing.T) {
	log := repeatLine("10.0.0.9", 10) + repeatLine("10.0.0.1", 30)

	first, err := Scan(strings.NewReader(log), IPv4, 20)
	require.NoError(t, err)
	second, err := Scan(strings.NewReader(log), IPv4, 20)
	require.NoError(t, err)

	assert.Equal(t, first.Records(), second.Records())
}

func TestTriageBoundary(t *testing.T) {
	log := repeatLine("10.0.0.15", 15) + repeatLine("10.0.0.16", 16)

	tally, err := Scan(strings.NewReader(log), IPv4, 20)
	require.NoError(t, err)

	suspicious := Triage(tally, 15)
	require.Len(t, suspicious, 1)
	assert.Equal(t, "10.0.0.16", suspicious[0].IP)
}

func TestTriageFirstSeenOrder(t *testing.T) {
	// 10.0.0.9 is below threshold; the other two interleave after it
	log := repeatLine("10.0.0.9", 10) +
		repeatLine("10.0.0.3", 1) +
		repeatLine("10.0.0.1", 20) +
		repeatLine("10.0.0.3", 20)

	tally, err := Scan(strings.NewReader(log), IPv4, 20)
	require.NoError(t, err)

	suspicious := Triage(tally, 15)
	require.Len(t, suspicious, 2)
	assert.Equal(t, "10.0.0.3", suspicious[0].IP)
	assert.Equal(t, "10.0.0.1", suspicious[1].IP)
	for _, rec := range suspicious {
		assert.LessOrEqual(t, len(rec.Samples), 20)
		assert.Greater(t, rec.Count, 15)
	}
}
