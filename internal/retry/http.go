package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Transient reports whether the status is worth another attempt.
func (e *StatusError) Transient() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// PostJSON posts in as JSON and decodes the 2xx response into out under policy p.
// 4xx responses other than 408/429 are not retried.
func PostJSON(ctx context.Context, client *http.Client, p Policy, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return Do(ctx, p, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			se := &StatusError{Code: resp.StatusCode, Body: string(b)}
			if se.Transient() {
				return se
			}
			return Permanent(se)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}
