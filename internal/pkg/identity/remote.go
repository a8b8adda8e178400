package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RemoteDirectory talks to the legacy site's REST bridge.
//
//	GET {base}/users?email=...  -> {"id": 42, "email": "..."}
//	GET {base}/users/{id}       -> {"id": 42, "email": "..."}
//
// 404 is a definitive miss. Transport failures, timeouts, 401/403 (our token
// rejected) and 5xx are reported as *UnavailableError.
type RemoteDirectory struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewRemoteDirectory creates a REST client whose every call is bounded by timeout.
func NewRemoteDirectory(baseURL, token string, timeout time.Duration) *RemoteDirectory {
	return &RemoteDirectory{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:   strings.TrimSpace(token),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type remoteAccount struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Found *bool  `json:"found,omitempty"`
}

func (c *RemoteDirectory) LookupByEmail(ctx context.Context, email string) (*Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	q := url.Values{}
	q.Set("email", email)
	return c.lookup(ctx, "/users?"+q.Encode())
}

func (c *RemoteDirectory) LookupByID(ctx context.Context, customerID int64) (*Account, error) {
	if customerID <= 0 {
		return nil, ErrNotFound
	}
	return c.lookup(ctx, "/users/"+strconv.FormatInt(customerID, 10))
}

func (c *RemoteDirectory) lookup(ctx context.Context, path string) (*Account, error) {
	body, status, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}

	var out remoteAccount
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, Unavailable("remote directory returned malformed response", err)
	}
	if (out.Found != nil && !*out.Found) || out.ID <= 0 {
		return nil, ErrNotFound
	}
	return &Account{CustomerID: out.ID, Email: normalizeEmail(out.Email)}, nil
}

// do performs the request and returns the body for 2xx and 404 responses.
// Everything else is classified as unavailability.
func (c *RemoteDirectory) do(ctx context.Context, method, path string) ([]byte, int, error) {
	if c.BaseURL == "" {
		return nil, 0, Unavailable("remote directory not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return nil, 0, Unavailable("remote directory misconfigured", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) && ue.Timeout() {
			return nil, 0, Unavailable("remote directory timeout", err)
		}
		return nil, 0, transportFailure("remote directory", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, transportFailure("remote directory", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, Unavailable(
			fmt.Sprintf("remote directory rejected service credentials: status=%d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusNotFound:
		return body, resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, resp.StatusCode, Unavailable(
			fmt.Sprintf("remote directory failed: status=%d", resp.StatusCode), nil)
	}
	return body, resp.StatusCode, nil
}
