package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m3rciful/storebot/shop/order"
)

// FileSink writes each order as an indented JSON document into Dir.
type FileSink struct {
	Dir string
}

// NewFileSink creates dir when missing.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("orders: create dir %s: %w", dir, err)
	}
	return &FileSink{Dir: dir}, nil
}

// RecordOrder writes <name>_<surname>_<timestamp>.json. An existing file is
// never replaced: on collision the order id is appended to the name.
func (s *FileSink) RecordOrder(_ context.Context, o order.Order) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("orders: encode %s: %w", o.ID, err)
	}
	name := safeFileName(o.FileName())
	stem := strings.TrimSuffix(name, ".json")
	candidates := []string{
		name,
		stem + "_" + o.ID.String()[:8] + ".json",
		stem + "_" + o.ID.String() + ".json",
	}
	for _, c := range candidates {
		path := filepath.Join(s.Dir, c)
		err = writeExclusive(path, data)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("orders: write %s: %w", path, err)
		}
	}
	return fmt.Errorf("orders: write %s: %w", name, err)
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

var fileNameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", "\x00", "_",
)

func safeFileName(name string) string {
	name = fileNameReplacer.Replace(name)
	if strings.HasPrefix(name, ".") {
		name = "_" + name
	}
	return name
}
