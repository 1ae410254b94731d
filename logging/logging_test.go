package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSplitter_WritesWholeLineAtEveryLevel(t *testing.T) {
	splitter := OutputSplitter{}

	tests := []struct {
		name string
		line []byte
	}{
		{"error", []byte(`time="2026-01-01T00:00:00Z" level=error msg="overrun"`)},
		{"info", []byte(`time="2026-01-01T00:00:00Z" level=info msg="started"`)},
		{"warn", []byte(`time="2026-01-01T00:00:00Z" level=warning msg="retry"`)},
		{"errorWordInMessage", []byte(`time="2026-01-01T00:00:00Z" level=info msg="no error here"`)},
		{"empty", []byte(``)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := splitter.Write(tt.line)
			assert.NoError(t, err)
			assert.Equal(t, len(tt.line), n)
		})
	}
}

func TestNew_AppliesLevelAndFormat(t *testing.T) {
	l := New("debug", "json")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	_, isJSON := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l := New("not-a-level", "text")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, isText := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func TestForCycler_TagsEntry(t *testing.T) {
	l := New("info", "text")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	ForCycler(l, "vision").Info("hello")
	require.Contains(t, buf.String(), `cycler=vision`)
}

func TestForComponent_TagsEntry(t *testing.T) {
	l := New("info", "text")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	ForComponent(l, "observability").Info("listening")
	require.Contains(t, buf.String(), `component=observability`)
}
