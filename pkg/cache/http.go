package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ResponseToEntry converts an HTTP response to a cache Entry.
// The response body is read fully and then restored, so the caller and the
// cache each hold an independently readable copy.
func ResponseToEntry(req *http.Request, resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}
	if req == nil {
		req = resp.Request
	}
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	// Read body
	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &Entry{
		URL:        KeyFor(req).URL.String(),
		Method:     req.Method,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header.Clone(),
		Data:       body,
		CachedAt:   time.Now(),
	}
	if entry.Method == "" {
		entry.Method = http.MethodGet
	}
	if entry.Headers == nil {
		entry.Headers = http.Header{}
	}

	// Remember the request side of Vary so later lookups can be compared
	for _, name := range entry.Vary() {
		if name == "*" {
			continue
		}
		if v := req.Header.Values(name); len(v) > 0 {
			if entry.VaryHeaders == nil {
				entry.VaryHeaders = http.Header{}
			}
			entry.VaryHeaders[name] = append([]string(nil), v...)
		}
	}

	return entry, nil
}

// EntryToResponse converts a cache entry back to an HTTP response.
// Every call yields a response with its own body reader.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	if entry == nil {
		return nil
	}
	status := entry.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode))
	}
	header := entry.Headers.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        status,
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}

// EmptyResponse builds a synthetic response with the given status and no body.
func EmptyResponse(req *http.Request, statusCode int) *http.Response {
	return &http.Response{
		Status:        strconv.Itoa(statusCode) + " " + http.StatusText(statusCode),
		StatusCode:    statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{},
		Body:          io.NopCloser(bytes.NewReader(nil)),
		ContentLength: 0,
		Request:       req,
	}
}

// checkCacheable applies the store rules of the cache API: only GET
// requests, no partial content and no "Vary: *".
func checkCacheable(req *http.Request, entry *Entry) error {
	if req.Method != "" && req.Method != http.MethodGet {
		return fmt.Errorf("%w: method %s", ErrNotCacheable, req.Method)
	}
	if entry.StatusCode == http.StatusPartialContent {
		return fmt.Errorf("%w: partial content", ErrNotCacheable)
	}
	for _, name := range entry.Vary() {
		if name == "*" {
			return fmt.Errorf("%w: vary *", ErrNotCacheable)
		}
	}
	return nil
}
