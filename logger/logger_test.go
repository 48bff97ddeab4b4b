package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)

	cases := map[string]Level{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		"":        InfoLevel,
		"info":    InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"fatal":   FatalLevel,
	}
	for input, expected := range cases {
		level, err := ParseLevel(input)
		require.NoError(err, input)
		require.Equal(expected, level, input)
	}

	_, err := ParseLevel("verbose")
	require.Error(err)
	require.Equal("warn", WarnLevel.String())
}

func TestSlogLogger_JSONOutput(t *testing.T) {
	t.Setenv("ENV", "")
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false)

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("session_id", "abc").Info("login successful", "user", "alice")

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("login successful", rec["msg"])
	require.Equal("abc", rec["session_id"])
	require.Equal("alice", rec["user"])
	require.Contains(rec, "ts")
}

func TestSlogLogger_SetLevelSharedWithChildren(t *testing.T) {
	t.Setenv("ENV", "")
	require := require.New(t)

	var buf bytes.Buffer
	parent := NewSlogWithWriter(&buf, InfoLevel, false)
	child := parent.With("component", "session")

	parent.SetLevel(DebugLevel)
	require.Equal(DebugLevel, child.Level())

	child.Debug("line read", "line", "LNET>")
	require.Contains(buf.String(), "line read")
}

func TestMockLogger(t *testing.T) {
	m := NewMockLogger()
	m.On("Warn", "decode failed", mock.Anything).Once()
	m.On("Level").Return(WarnLevel)

	m.Warn("decode failed", "error", "bad byte")
	require.Equal(t, WarnLevel, m.Level())
	m.AssertExpectations(t)
}

func TestSetLogger(t *testing.T) {
	require := require.New(t)

	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	m := NewMockLogger().AllowAny("Debug")
	m.On("Info", "connected", mock.Anything).Once()

	SetLogger(nil)
	require.Same(prev, GetLogger())

	SetLogger(m)
	Debug("ignored")
	Info("connected", "address", "10.0.0.5:23")
	m.AssertExpectations(t)
}
