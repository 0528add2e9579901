// Package httpclient provides basic http functions for retrieving feeds
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrBodyTooLarge is returned when a response exceeds Client.MaxBodyBytes
var ErrBodyTooLarge = errors.New("response body too large")

// RemoteFileInfo contains information identifying a version of a remote file
type RemoteFileInfo struct {
	ETag                  string
	LastModifiedTimestamp int64
	Path                  string
}

// IsDifferent returns true if etag and lastModifiedTimestamp describe another version than df.
// ETag is compared when present, otherwise the last modified timestamp.
func (df *RemoteFileInfo) IsDifferent(etag string, lastModifiedTimestamp int64) bool {
	if len(df.ETag) > 0 {
		return df.ETag != etag
	}
	return df.LastModifiedTimestamp != lastModifiedTimestamp
}

// Known returns true when df carries an ETag or a last modified timestamp
func (df *RemoteFileInfo) Known() bool {
	return len(df.ETag) > 0 || df.LastModifiedTimestamp > 0
}

// Document is the content retrieved from a url or local file
type Document struct {
	RemoteFileInfo RemoteFileInfo
	Body           []byte
	DownloadedAt   time.Time
}

// Client retrieves feed documents over http or from the local file system
type Client struct {
	httpClient   *http.Client
	maxBodyBytes int64
}

// NewClient builds a Client with a request timeout and a limit on the size of response bodies
func NewClient(timeout time.Duration, maxBodyBytes int64) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		maxBodyBytes: maxBodyBytes,
	}
}

// IsRemote returns true if location is an http or https url
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// GetRemoteFileInfo retrieves ETag and last modified timestamp from url using a HEAD request
func (c *Client) GetRemoteFileInfo(ctx context.Context, url string) (RemoteFileInfo, error) {
	if !IsRemote(url) {
		return getLocalFileInfo(url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return RemoteFileInfo{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RemoteFileInfo{}, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return RemoteFileInfo{}, fmt.Errorf("HEAD %s returned status %d", url, resp.StatusCode)
	}
	return getRemoteFileInfo(url, resp), nil
}

func getRemoteFileInfo(url string, resp *http.Response) RemoteFileInfo {
	result := RemoteFileInfo{
		Path: url,
	}
	result.ETag = resp.Header.Get("ETag")

	lastModifiedString := resp.Header.Get("Last-Modified")

	if len(lastModifiedString) > 0 {
		parsedTime, err := time.Parse(time.RFC1123, lastModifiedString)
		if err == nil {
			result.LastModifiedTimestamp = parsedTime.Unix()
		}
	}
	return result

}

func getLocalFileInfo(path string) (RemoteFileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return RemoteFileInfo{}, err
	}
	return RemoteFileInfo{
		Path:                  path,
		LastModifiedTimestamp: stat.ModTime().Unix(),
	}, nil
}

// Get retrieves the document at location, which is either an http(s) url or a local file path.
func (c *Client) Get(ctx context.Context, location string) (*Document, error) {
	if !IsRemote(location) {
		return c.readLocalFile(location)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s returned status %d", location, resp.StatusCode)
	}

	body, err := c.readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	return &Document{
		RemoteFileInfo: getRemoteFileInfo(location, resp),
		Body:           body,
		DownloadedAt:   time.Now(),
	}, nil
}

func (c *Client) readLocalFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	body, err := c.readLimited(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	info, err := getLocalFileInfo(path)
	if err != nil {
		return nil, err
	}
	return &Document{
		RemoteFileInfo: info,
		Body:           body,
		DownloadedAt:   time.Now(),
	}, nil
}

// readLimited reads all of r, failing once more than maxBodyBytes are present
func (c *Client) readLimited(r io.Reader) ([]byte, error) {
	if c.maxBodyBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, c.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}
