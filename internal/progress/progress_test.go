package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModes(t *testing.T) {
	assert.True(t, Stream("x").ShouldStream())
	assert.False(t, Stream("x").ShouldStatus())
	assert.True(t, Status("x").ShouldStatus())
	assert.False(t, Status("x").ShouldStream())

	both := Update{Mode: ReportStreamAndStatus}
	assert.True(t, both.ShouldStream())
	assert.True(t, both.ShouldStatus())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "[3 sources]\n", Normalize(Status("[3 sources]")).Message)
	assert.Equal(t, "done\n", Normalize(Status("done\n")).Message)
	assert.Equal(t, "tok", Normalize(Stream("tok")).Message)
	assert.Equal(t, "", Normalize(Status("")).Message)
}

func TestDispatch(t *testing.T) {
	assert.NoError(t, Dispatch(nil, Stream("ignored")))

	var got []Update
	cb := func(u Update) error {
		got = append(got, u)
		return nil
	}
	assert.NoError(t, Dispatch(cb, Status("line")))
	assert.Equal(t, []Update{{Message: "line\n", AddNewLine: true, Mode: ReportJustStatus}}, got)

	boom := errors.New("boom")
	assert.ErrorIs(t, Dispatch(func(Update) error { return boom }, Stream("x")), boom)
}
