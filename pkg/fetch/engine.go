package fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"

	"github.com/lumen/lumen/pkg/spool"
)

// engine wraps the HTTP client. Responses are streamed straight into a
// spool file, never buffered whole in memory.
type engine struct {
	client   *resty.Client
	spoolDir string
}

func newEngine(cfg Config) *engine {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetDoNotParseResponse(true).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return &engine{client: client, spoolDir: cfg.SpoolDir}
}

// get performs one download. On a 200 it returns the spool holding the
// body, unfinalized, cursor at end, plus the byte count. On any other
// status the body is discarded and the spool is nil. A non-nil error is
// a transport-level failure carrying the engine's formatted string.
func (e *engine) get(ctx context.Context, url string) (*spool.File, int, int64, error) {
	resp, err := e.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, 0, 0, err
	}

	raw := resp.RawBody()
	defer raw.Close()

	status := resp.StatusCode()
	if status != 200 {
		_, _ = io.Copy(io.Discard, raw)
		return nil, status, 0, nil
	}

	file, err := spool.New(e.spoolDir)
	if err != nil {
		return nil, status, 0, err
	}

	n, err := io.Copy(file, raw)
	if err != nil {
		_ = file.Close()
		return nil, status, 0, fmt.Errorf("spool body: %w", err)
	}

	return file, status, n, nil
}

// readBack copies a just-written spool's contents out and restores the
// cursor to the end, where the writer left it.
func readBack(file *spool.File, n int64) ([]byte, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(file, body); err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	return body, nil
}
