package df1

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufLogger struct {
	lines []string
}

func (l *bufLogger) Printf(format string, v ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestLogNotifier(t *testing.T) {
	var l bufLogger
	n := &LogNotifier{Logger: &l}
	require.NoError(t, n.Notify(context.Background(), "DF1 alarm", "B3:0/1 set"))
	assert.Equal(t, []string{`df1: notification "DF1 alarm": B3:0/1 set`}, l.lines)

	assert.Error(t, (&LogNotifier{}).Notify(context.Background(), "s", "b"))
}

func TestDirTransfer(t *testing.T) {
	root := t.TempDir()
	local := filepath.Join(t.TempDir(), "poll.csv")
	require.NoError(t, os.WriteFile(local, []byte("time,N7:0\n"), 0o644))

	tr := &DirTransfer{Root: root}
	require.NoError(t, tr.Transfer(context.Background(), Upload, local, "logs/poll.csv"))
	b, err := os.ReadFile(filepath.Join(root, "logs", "poll.csv"))
	require.NoError(t, err)
	assert.Equal(t, "time,N7:0\n", string(b))

	back := filepath.Join(t.TempDir(), "back.csv")
	require.NoError(t, tr.Transfer(context.Background(), Download, back, "logs/poll.csv"))
	b, err = os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, "time,N7:0\n", string(b))
}

func TestDirTransferStaysInRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	require.NoError(t, os.Mkdir(root, 0o755))
	local := filepath.Join(base, "poll.csv")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))

	tr := &DirTransfer{Root: root}
	for _, remote := range []string{"../escaped.csv", "a/../../escaped.csv", "/tmp/escaped.csv"} {
		assert.Error(t, tr.Transfer(context.Background(), Upload, local, remote), remote)
	}
	_, err := os.Stat(filepath.Join(base, "escaped.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestDirTransferCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&DirTransfer{Root: t.TempDir()}).Transfer(ctx, Upload, "missing", "x")
	assert.ErrorIs(t, err, context.Canceled)
}
