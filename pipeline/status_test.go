package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/printd/printd/attr"
	"github.com/printd/printd/job"
)

func TestParseStatusLineKnownPrefix(t *testing.T) {
	sev, msg := parseStatusLine("ERROR: out of paper\n")
	assert.Equal(t, ESeverity.Error(), sev)
	assert.Equal(t, "out of paper", msg)
}

func TestParseStatusLineUnrecognizedPrefixDefaultsToDebug(t *testing.T) {
	sev, msg := parseStatusLine("BOGUS: whatever this is")
	assert.Equal(t, ESeverity.Debug(), sev)
	assert.Equal(t, "whatever this is", msg)
}

func TestParseStatusLineNoColonDefaultsToDebug(t *testing.T) {
	sev, msg := parseStatusLine("no colon here")
	assert.Equal(t, ESeverity.Debug(), sev)
	assert.Equal(t, "no colon here", msg)
}

func TestConsumeLineRecordsFirstWorstStatus(t *testing.T) {
	sr := &StatusReader{}
	r := &job.Record{}

	sr.ConsumeLine(r, "WARNING: low toner")
	assert.Equal(t, ESeverity.Warning(), r.WorstSeverity)
	assert.Equal(t, "low toner", string(r.LineBuffer))
	assert.True(t, r.HasWorstLine)

	sr.ConsumeLine(r, "ERROR: jam detected")
	assert.Equal(t, ESeverity.Warning(), r.WorstSeverity, "first worst line wins, later lines don't overwrite it")
	assert.Equal(t, "low toner", string(r.LineBuffer))
}

func TestConsumeLineIgnoresDebugForWorstStatus(t *testing.T) {
	sr := &StatusReader{}
	r := &job.Record{}

	sr.ConsumeLine(r, "DEBUG: starting up")
	assert.False(t, r.HasWorstLine)
	assert.Equal(t, job.ESeverity.Unset(), r.WorstSeverity)
}

func TestConsumeLinePageIncrementsSheetsCompleted(t *testing.T) {
	sr := &StatusReader{}
	cat := attr.NewCatalog(0x0002, 1)
	sheets, err := cat.Add(attr.EGroupTag.Job(), attr.EValueTag.Integer(), "job-media-sheets-completed", attr.IntValue(0))
	if err != nil {
		t.Fatal(err)
	}
	r := &job.Record{SheetsAttr: sheets}

	sr.ConsumeLine(r, "PAGE: 1")
	assert.EqualValues(t, 1, sheets.Values[0].Integer)

	sr.ConsumeLine(r, "PAGE: 2 3")
	assert.EqualValues(t, 4, sheets.Values[0].Integer, "page-number copies form credits by the copies count")
}

func TestConsumeLinePageDoesNotAffectWorstStatus(t *testing.T) {
	sr := &StatusReader{}
	r := &job.Record{}

	sr.ConsumeLine(r, "PAGE: 1")
	assert.False(t, r.HasWorstLine)
}
