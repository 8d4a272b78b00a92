package fetcher

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// maxBody caps a downloaded timetable file
const maxBody = 10 * 1024 * 1024

// Download is a fetched timetable file
type Download struct {
	// Filename carries the extension the spreadsheet reader dispatches on
	Filename string
	Data     []byte
}

// Fetch downloads a published timetable file
func Fetch(rawURL string) (*Download, error) {
	// Validate URL
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + strings.TrimSpace(rawURL))
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	// Fetch with timeout
	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "attend/1.0 (timetable import)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("file larger than %d bytes", maxBody)
	}

	return &Download{
		Filename: filename(u, resp.Header),
		Data:     body,
	}, nil
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

// extByType maps response content types to reader extensions
var extByType = map[string]string{
	"text/html":                ".html",
	"text/csv":                 ".csv",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
}

// filename prefers the server's attachment name, then the URL path, and
// makes sure the result has an extension matching the content type
func filename(u *url.URL, h http.Header) string {
	if _, params, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		return path.Base(params["filename"])
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "timetable"
	}
	if path.Ext(name) != "" {
		return name
	}

	mediaType, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
	if ext, ok := extByType[mediaType]; ok {
		return name + ext
	}
	return name
}
