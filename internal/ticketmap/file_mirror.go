package ticketmap

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileMirror keeps the mappings as one pretty-printed JSON object.
type FileMirror struct {
	Path string
}

func NewFileMirror(path string) *FileMirror {
	return &FileMirror{Path: path}
}

func (f *FileMirror) Save(_ context.Context, all map[string]Mapping) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	out := make(map[string]Mapping, len(all))
	for id, m := range all {
		m.TicketID = ""
		out[id] = m
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".mappings-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

func (f *FileMirror) Load(_ context.Context) (map[string]Mapping, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Mapping{}, nil
		}
		return nil, err
	}
	out := map[string]Mapping{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
