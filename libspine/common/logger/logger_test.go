package logger

import (
	"bytes"
	"os"
	"testing"

	dlog "github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, dlog.WARNING, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogger_FormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	l := CreateLogger("engine")
	l.Infof("loaded %d databases", 16)
	l.Debugf("hidden")
	l.SetLevel(dlog.ERROR)
	l.Warningf("hidden too")

	out := buf.String()
	assert.Contains(t, out, "INFO  | engine     | loaded 16 databases")
	assert.NotContains(t, out, "hidden")
}

func TestInit(t *testing.T) {
	assert.NoError(t, Init("debug"))
	assert.Error(t, Init("nope"))
}
