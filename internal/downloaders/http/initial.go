package fgethttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/fget/internal/utils"
)

const defaultFilename = "download"

type ProbeResult struct {
	SupportsRanges bool
	TotalSize      int64 // -1 when unknown
	Filename       string
	// Body carries the full response when the server ignored the probe range,
	// so the whole-body fallback can reuse it instead of fetching twice.
	Body io.ReadCloser
}

// Probe asks for the first two bytes with a GET (HEAD is unreliable against pre-signed
// URLs bound to the method) and reads range support and total size from the response.
func Probe(ctx context.Context, client utils.HTTPDoer, rawURL, filenameOverride string) (*ProbeResult, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ProbeError{URL: rawURL, Err: fmt.Errorf("invalid URL: %w", err)}
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, &ProbeError{URL: rawURL, Err: fmt.Errorf("unsupported scheme: %q", parsedURL.Scheme)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ProbeError{URL: rawURL, Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Range", "bytes=0-1")
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProbeError{URL: rawURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &ProbeError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrBadStatus}
	}

	result := &ProbeResult{
		TotalSize: -1,
		Filename:  ResolveFilename(rawURL, filenameOverride),
	}
	if resp.StatusCode == http.StatusPartialContent {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64))
		resp.Body.Close()
		_, _, total, err := ParseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, &ProbeError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrUnknownSize, err)}
		}
		if total < 0 {
			return nil, &ProbeError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrUnknownSize}
		}
		result.SupportsRanges = true
		result.TotalSize = total
		log.Debug().Str("op", "http/probe").Str("url", rawURL).Int64("size", total).Msg("Range requests supported")
		return result, nil
	}

	if resp.ContentLength < 0 {
		resp.Body.Close()
		return nil, &ProbeError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrUnknownSize}
	}
	result.TotalSize = resp.ContentLength
	result.Body = resp.Body
	log.Warn().Str("op", "http/probe").Str("url", rawURL).Int64("size", result.TotalSize).Msg("Byte ranges not supported by host, using a single stream")
	return result, nil
}

// ResolveFilename returns the override when set, else the URL's last path segment
// without the query, percent-decoded and reduced to a base name.
func ResolveFilename(rawURL, override string) string {
	if override != "" {
		return override
	}
	name := ""
	if parsedURL, err := url.Parse(rawURL); err == nil {
		segments := strings.Split(parsedURL.EscapedPath(), "/")
		name = segments[len(segments)-1]
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	name = filepath.Base(filepath.FromSlash(name))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return defaultFilename
	}
	return name
}

// ParseContentRange parses "bytes start-end/total". total is -1 for "*".
func ParseContentRange(header string) (start, end, total int64, err error) {
	if !strings.HasPrefix(header, "bytes ") {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %q", header)
	}
	rangePart, totalPart, ok := strings.Cut(strings.TrimPrefix(header, "bytes "), "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %q", header)
	}
	startPart, endPart, ok := strings.Cut(rangePart, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %q", header)
	}
	if start, err = strconv.ParseInt(strings.TrimSpace(startPart), 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}
	if end, err = strconv.ParseInt(strings.TrimSpace(endPart), 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}
	if totalPart == "*" {
		return start, end, -1, nil
	}
	if total, err = strconv.ParseInt(strings.TrimSpace(totalPart), 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
	}
	return start, end, total, nil
}
