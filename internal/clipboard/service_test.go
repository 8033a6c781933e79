package clipboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestWrite_PrimaryMethod(t *testing.T) {
	var got string
	s := NewService(nopLogger{}, "").(*clipboardService)
	s.writeAll = func(text string) error {
		got = text
		return nil
	}

	require.NoError(t, s.Write(context.Background(), "https://cs1.vkuseraudio.net/a.mp3"))
	assert.Equal(t, "https://cs1.vkuseraudio.net/a.mp3", got)
}

func TestWrite_FallsBackToConfiguredCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}

	out := filepath.Join(t.TempDir(), "clip.txt")
	s := NewService(nopLogger{}, `sh -c "cat > `+out+`"`).(*clipboardService)
	s.writeAll = func(string) error { return errors.New("no clipboard") }

	require.NoError(t, s.Write(context.Background(), "link"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "link", string(data))
}

func TestWriteCmd(t *testing.T) {
	s := NewService(nopLogger{}, "").(*clipboardService)
	s.writeAll = func(string) error { return nil }

	msg := s.WriteCmd("x")()
	copied, ok := msg.(CopiedMsg)
	require.True(t, ok)
	assert.Equal(t, "x", copied.Text)
	assert.NoError(t, copied.Err)
}

func TestRead_PrimaryMethod(t *testing.T) {
	s := NewService(nopLogger{}, "").(*clipboardService)
	s.readAll = func() (string, error) { return "hello", nil }

	text, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"pbcopy", []string{"pbcopy"}},
		{"xclip -selection clipboard", []string{"xclip", "-selection", "clipboard"}},
		{`sh -c "cat > /tmp/a b"`, []string{"sh", "-c", "cat > /tmp/a b"}},
		{`echo 'it"s'`, []string{"echo", `it"s`}},
		{"   ", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseCommand(tt.in), tt.in)
	}
}
