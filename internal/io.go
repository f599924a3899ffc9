package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MarshalFile writes o as indented JSON to path. The data is written to a
// temporary file in the same directory and renamed into place, so readers
// never see a partial file.
func MarshalFile(path string, o any) (outErr error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	defer func() {
		if outErr != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")

	err = enc.Encode(o)
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("marshal JSON: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temporary file: %w", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("move file into place: %w", err)
	}

	return nil
}

// Close closes c and joins any error into outErr. Already closed files are
// not treated as an error.
func Close(name string, c io.Closer, outErr *error) {
	err := c.Close()
	if err == nil || errors.Is(err, os.ErrClosed) {
		return
	}

	*outErr = errors.Join(*outErr, fmt.Errorf("close %s: %w", name, err))
}
