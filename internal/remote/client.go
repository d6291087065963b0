// Package remote is the HTTP client for the ledger message store. The
// store is an external collaborator; this package only speaks its
// send/query contract and normalizes its wire quirks.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"ledgerchat/internal/model"
)

// ErrTransport marks a failed store round trip. Silent sync paths
// absorb it; only a blocked first paint surfaces it.
var ErrTransport = errors.New("message store unreachable")

const defaultTimeout = 10 * time.Second

type Client struct {
	host string
	http *http.Client
}

// NewClient returns a store client for host ("host:port"). The timeout
// bounds every round trip so a hung request cannot stall the poll
// cycle; zero means the default.
func NewClient(host string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		host: host,
		http: &http.Client{Timeout: timeout},
	}
}

// SendRequest is one outgoing message. Text is already an envelope (or
// plaintext when encryption is off) by the time it reaches this layer.
type SendRequest struct {
	Author         string
	SenderIdentity string
	Text           string
	ImageRef       *int64
	ReplyTo        *int64
}

// SendMessage appends a message to the ledger and returns it with the
// server-assigned id and timestamp.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (model.Message, error) {
	body, err := json.Marshal(wireSendRequest{
		Author:         req.Author,
		SenderIdentity: req.SenderIdentity,
		Text:           req.Text,
		ImageRef:       asArray(req.ImageRef),
		ReplyTo:        asArray(req.ReplyTo),
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("marshal send request: %w", err)
	}

	var w wireMessage
	if err := c.do(ctx, http.MethodPost, "/messages", nil, bytes.NewReader(body), &w); err != nil {
		return model.Message{}, err
	}
	return fromWire(w), nil
}

// GetLatestPage fetches one page of the log. Page 1 holds the newest
// messages; higher pages reach further into history.
func (c *Client) GetLatestPage(ctx context.Context, page, pageSize int) (model.Page, error) {
	query := url.Values{
		"page": []string{strconv.Itoa(page)},
		"size": []string{strconv.Itoa(pageSize)},
	}

	var w wirePage
	if err := c.do(ctx, http.MethodGet, "/messages", query, nil, &w); err != nil {
		return model.Page{}, err
	}
	return fromWirePage(w), nil
}

// GetMessageCount returns the total number of messages in the scope.
func (c *Client) GetMessageCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/count", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// UploadImage stores raw image bytes and returns the opaque reference
// later carried in Message.ImageRef.
func (c *Client) UploadImage(ctx context.Context, data []byte) (int64, error) {
	var resp struct {
		Ref int64 `json:"ref"`
	}
	if err := c.do(ctx, http.MethodPost, "/images", nil, bytes.NewReader(data), &resp); err != nil {
		return 0, err
	}
	return resp.Ref, nil
}

// FetchImage returns the raw bytes behind an image reference.
func (c *Client) FetchImage(ctx context.Context, ref int64) ([]byte, error) {
	u := c.url(fmt.Sprintf("/images/%d", ref), nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrTransport, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrTransport, "image %d: status %d", ref, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) url(path string, query url.Values) string {
	u := url.URL{
		Scheme: "http",
		Host:   c.host,
		Path:   path,
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(ErrTransport, err.Error())
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrTransport, "%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(ErrTransport, "decode %s response: %v", path, err)
	}
	return nil
}
