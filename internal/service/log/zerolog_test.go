package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    zerolog.Level
		log      func(l Logger)
		expLevel string
		expMsg   string
	}{
		{
			name:     "Info messages should be logged on info level.",
			level:    zerolog.InfoLevel,
			log:      func(l Logger) { l.Infof("hello %s", "world") },
			expLevel: "info",
			expMsg:   "hello world",
		},
		{
			name:     "Warnings should be logged with warn level.",
			level:    zerolog.InfoLevel,
			log:      func(l Logger) { l.Warningf("careful") },
			expLevel: "warn",
			expMsg:   "careful",
		},
		{
			name:     "Debug messages should be logged when debug is enabled.",
			level:    zerolog.DebugLevel,
			log:      func(l Logger) { l.Debugf("n=%d", 3) },
			expLevel: "debug",
			expMsg:   "n=3",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			var b bytes.Buffer
			test.log(newZerolog(&b, test.level))

			var got map[string]interface{}
			require.NoError(json.Unmarshal(b.Bytes(), &got))
			assert.Equal(test.expLevel, got["level"])
			assert.Equal(test.expMsg, got["message"])
		})
	}
}

func TestZerologDebugDisabled(t *testing.T) {
	var b bytes.Buffer
	l := newZerolog(&b, zerolog.InfoLevel)
	l.Debugf("hidden")

	assert.Empty(t, b.String())
}

func TestZerologWithValues(t *testing.T) {
	var b bytes.Buffer
	l := newZerolog(&b, zerolog.InfoLevel).WithValues(map[string]interface{}{"component": "poller"})
	l.Errorf("boom")

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b.Bytes(), &got))
	assert.Equal(t, "poller", got["component"])
	assert.Equal(t, "error", got["level"])
}
