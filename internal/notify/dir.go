package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DirChannel writes each message into a local directory as <id>.html plus
// <id>.json. It is meant for development and for reviewing templates.
type DirChannel struct {
	dir string
	now func() time.Time
}

// NewDirChannel creates dir if needed.
func NewDirChannel(dir string) (*DirChannel, error) {
	if dir == "" {
		return nil, fmt.Errorf("outbox directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create outbox %s: %w", dir, err)
	}
	return &DirChannel{dir: dir, now: time.Now}, nil
}

func (c *DirChannel) Type() string { return "dir" }

func (c *DirChannel) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := c.now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
	meta, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(c.dir, id+".html"), []byte(msg.HTML)); err != nil {
		return "", err
	}
	if err := writeFileAtomic(filepath.Join(c.dir, id+".json"), meta); err != nil {
		return "", err
	}
	return id, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
