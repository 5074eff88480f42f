package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/weiihann/heft/harness"
)

// WriteFile renders p with render into path. The file is replaced
// atomically so watchers never see a partial payload. Paths ending in .gz
// are gzip-compressed.
func WriteFile(
	path string,
	p *harness.Payload,
	render func(io.Writer, *harness.Payload) error,
) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)

	var out io.Writer = bw
	var zw *gzip.Writer
	if isGzip(path) {
		zw = gzip.NewWriter(bw)
		out = zw
	}

	if err := render(out, p); err != nil {
		tmp.Close()

		return err
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			tmp.Close()

			return fmt.Errorf("compress %s: %w", path, err)
		}
	}

	if err := bw.Flush(); err != nil {
		tmp.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	return nil
}

// ReadFile loads a JSON payload from path, decompressing .gz files.
func ReadFile(path string) (*harness.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if isGzip(path) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip payload: %w", err)
		}
		defer zr.Close()

		r = zr
	}

	return ReadJSON(r)
}

func isGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}
