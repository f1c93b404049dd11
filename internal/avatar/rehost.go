package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/charlesng35/teamspace/internal/storage"
)

const defaultMaxBytes int64 = 2 << 20

// ErrAvatarFetch reports that the remote image could not be downloaded.
var ErrAvatarFetch = errors.New("avatar: fetch failed")

// Rehoster copies remote avatar images into object storage.
type Rehoster struct {
	store    storage.ObjectStore
	client   *http.Client
	maxBytes int64
}

// NewRehoster constructs a Rehoster. A non-positive maxBytes selects a 2 MiB cap.
func NewRehoster(store storage.ObjectStore, client *http.Client, maxBytes int64) *Rehoster {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Rehoster{store: store, client: client, maxBytes: maxBytes}
}

// Endpoint returns the public URL prefix of the object store.
func (r *Rehoster) Endpoint() string {
	return r.store.PublicEndpoint()
}

// IsHosted reports whether url already points at the object store.
func (r *Rehoster) IsHosted(url string) bool {
	endpoint := r.store.PublicEndpoint()
	return endpoint != "" && strings.HasPrefix(url, endpoint)
}

// Rehost downloads url and stores it under avatars/<teamID>/<random>, returning the
// stored object's public URL.
func (r *Rehoster) Rehost(ctx context.Context, teamID, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAvatarFetch, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAvatarFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %d", ErrAvatarFetch, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAvatarFetch, err)
	}
	if int64(len(data)) > r.maxBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", ErrAvatarFetch, r.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	key := "avatars/" + teamID + "/" + uuid.NewString()
	return r.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}
