package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var plain = NewSentinels("")

func TestParseMarkers(t *testing.T) {
	stdout := "debug: starting\n" +
		"__JUDGE_CASE__|~|0|~|PASSED|~|[2,7,11,15], 9|~|[0,1]|~|[0,1]\n" +
		"some print from the solution\r\n" +
		"__JUDGE_CASE__|~|1|~|FAILED|~|[3,3], 6|~|[0,1]|~|[1,0]\r\n" +
		"__JUDGE_SUMMARY__|~|1|~|2\n"

	r, ok := ParseMarkers(stdout, plain)
	require.True(t, ok)
	require.Len(t, r.Cases, 2)
	assert.True(t, r.Summary)
	assert.Equal(t, 1, r.Passed)
	assert.Equal(t, 2, r.Total)

	assert.Equal(t, CaseMarker{ID: "0", Passed: true, Input: "[2,7,11,15], 9", Expected: "[0,1]", Actual: "[0,1]"}, r.Cases[0])
	c, found := r.Case("1")
	require.True(t, found)
	assert.False(t, c.Passed)
	assert.Equal(t, "[1,0]", c.Actual)

	_, found = r.Case("7")
	assert.False(t, found)
}

func TestParseMarkersWithoutMarkersIsNoResult(t *testing.T) {
	for _, stdout := range []string{"", "hello\nworld\n", "__JUDGE_SUMMARY__|~|0|~|0\n"} {
		r, ok := ParseMarkers(stdout, plain)
		assert.False(t, ok, stdout)
		assert.Nil(t, r, stdout)
	}
}

func TestParseMarkersAllFailedIsAResult(t *testing.T) {
	r, ok := ParseMarkers("__JUDGE_CASE__|~|0|~|FAILED|~|1|~|2|~|3\n", plain)
	require.True(t, ok)
	assert.Equal(t, 0, r.Passed)
	assert.Equal(t, 1, r.Total)
	assert.False(t, r.Summary)
}

func TestParseMarkersSkipsMalformedLines(t *testing.T) {
	stdout := "__JUDGE_CASE__|~|0|~|MAYBE|~|a|~|b|~|c\n" +
		"__JUDGE_CASE__|~|1|~|PASSED|~|a\n" +
		"__JUDGE_CASE__|~|2|~|PASSED|~|a|~|b|~|actual with |~| inside\n" +
		"__JUDGE_SUMMARY__|~|x|~|1\n"
	r, ok := ParseMarkers(stdout, plain)
	require.True(t, ok)
	require.Len(t, r.Cases, 1)
	assert.Equal(t, "2", r.Cases[0].ID)
	assert.Equal(t, "actual with |~| inside", r.Cases[0].Actual)
	assert.False(t, r.Summary)
	assert.Equal(t, 1, r.Passed)
}

func TestParseMarkersIgnoresOtherSentinels(t *testing.T) {
	s := NewSentinels("7d2a")
	stdout := "__JUDGE_CASE__|~|0|~|PASSED|~|x|~|1|~|1\n" +
		"__JUDGE_SUMMARY__|~|1|~|1\n" +
		"__JUDGE_CASE__7d2a|~|0|~|FAILED|~|x|~|1|~|2\n" +
		"__JUDGE_SUMMARY__7d2a|~|0|~|1\n"

	r, ok := ParseMarkers(stdout, s)
	require.True(t, ok)
	require.Len(t, r.Cases, 1)
	assert.False(t, r.Cases[0].Passed)
	assert.Equal(t, 0, r.Passed)
	assert.Equal(t, 1, r.Total)
	assert.NoError(t, r.Consistent())

	_, ok = ParseMarkers("__JUDGE_CASE__|~|0|~|PASSED|~|x|~|1|~|1\n", s)
	assert.False(t, ok)
}

func TestReportCaseLastMarkerWins(t *testing.T) {
	stdout := "__JUDGE_CASE__|~|0|~|PASSED|~|x|~|1|~|1\n" +
		"__JUDGE_CASE__|~|0|~|FAILED|~|x|~|1|~|2\n"
	r, ok := ParseMarkers(stdout, plain)
	require.True(t, ok)

	c, found := r.Case("0")
	require.True(t, found)
	assert.False(t, c.Passed)
	assert.Equal(t, "2", c.Actual)
	assert.ErrorIs(t, r.Consistent(), ErrInconsistentReport)
}

func TestReportConsistent(t *testing.T) {
	cases := []struct {
		name   string
		stdout string
		ok     bool
	}{
		{
			name: "matching summary",
			stdout: "__JUDGE_CASE__|~|0|~|PASSED|~|a|~|1|~|1\n" +
				"__JUDGE_CASE__|~|1|~|FAILED|~|b|~|1|~|2\n" +
				"__JUDGE_SUMMARY__|~|1|~|2\n",
			ok: true,
		},
		{
			name:   "no summary",
			stdout: "__JUDGE_CASE__|~|0|~|PASSED|~|a|~|1|~|1\n",
			ok:     true,
		},
		{
			name: "summary passes more than the cases",
			stdout: "__JUDGE_CASE__|~|0|~|FAILED|~|a|~|1|~|2\n" +
				"__JUDGE_SUMMARY__|~|1|~|1\n",
		},
		{
			name: "summary total differs",
			stdout: "__JUDGE_CASE__|~|0|~|PASSED|~|a|~|1|~|1\n" +
				"__JUDGE_SUMMARY__|~|1|~|2\n",
		},
		{
			name: "extra case id",
			stdout: "__JUDGE_CASE__|~|0|~|PASSED|~|a|~|1|~|1\n" +
				"__JUDGE_CASE__|~|9|~|PASSED|~|a|~|1|~|1\n" +
				"__JUDGE_SUMMARY__|~|1|~|1\n",
		},
		{
			name: "two summaries",
			stdout: "__JUDGE_CASE__|~|0|~|PASSED|~|a|~|1|~|1\n" +
				"__JUDGE_SUMMARY__|~|1|~|1\n" +
				"__JUDGE_SUMMARY__|~|1|~|1\n",
		},
	}
	for _, c := range cases {
		r, ok := ParseMarkers(c.stdout, plain)
		require.True(t, ok, c.name)
		err := r.Consistent()
		if c.ok {
			assert.NoError(t, err, c.name)
		} else {
			assert.ErrorIs(t, err, ErrInconsistentReport, c.name)
		}
	}
}
