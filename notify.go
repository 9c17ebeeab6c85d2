package df1

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Notifier delivers alarm and recipe notifications, e.g. by email.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Direction of a file transfer.
type Direction int

const (
	// Upload copies the local file to the remote side.
	Upload Direction = iota
	// Download copies the remote file to the local side.
	Download
)

func (d Direction) String() string {
	if d == Download {
		return "download"
	}
	return "upload"
}

// FileTransfer ships log files and fetches recipe files.
type FileTransfer interface {
	Transfer(ctx context.Context, dir Direction, localPath, remotePath string) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger logger
}

// Notify logs subject and body.
func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	if n.Logger == nil {
		return fmt.Errorf("df1: no logger for notification %q", subject)
	}
	n.Logger.Printf("df1: notification %q: %s", subject, body)
	return nil
}

// DirTransfer transfers files to and from a mounted remote directory.
// Remote paths are relative to Root.
type DirTransfer struct {
	Root string
}

// Transfer copies one file in the given direction.
func (t *DirTransfer) Transfer(ctx context.Context, dir Direction, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !filepath.IsLocal(filepath.FromSlash(remotePath)) {
		return fmt.Errorf("df1: remote path %q is outside %s", remotePath, t.Root)
	}
	remotePath = filepath.Join(t.Root, filepath.FromSlash(remotePath))
	src, dst := localPath, remotePath
	if dir == Download {
		src, dst = remotePath, localPath
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("df1: %v %s: %w", dir, src, err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
