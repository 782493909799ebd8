package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const listPageSize = 1000

// Supabase talks to the Storage REST API of a Supabase project.
type Supabase struct {
	baseURL string
	bucket  string
	apiKey  string
	http    *http.Client
}

func NewSupabase(baseURL, bucket, apiKey string) *Supabase {
	return &Supabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type listRequest struct {
	Prefix string     `json:"prefix"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	SortBy listSortBy `json:"sortBy"`
}

type listSortBy struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

type listEntry struct {
	Name string  `json:"name"`
	ID   *string `json:"id"`
}

type apiError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// List returns every file directly under folder. Pages are requested until
// a short page comes back.
func (s *Supabase) List(ctx context.Context, folder string) ([]Object, error) {
	var objects []Object
	for offset := 0; ; offset += listPageSize {
		page, err := s.listPage(ctx, folder, offset)
		if err != nil {
			return nil, err
		}
		for _, e := range page {
			// Sub-folders come back with a null id.
			if e.ID == nil || e.Name == "" {
				continue
			}
			objects = append(objects, Object{Name: e.Name})
		}
		if len(page) < listPageSize {
			return objects, nil
		}
	}
}

func (s *Supabase) listPage(ctx context.Context, folder string, offset int) ([]listEntry, error) {
	body, err := json.Marshal(listRequest{
		Prefix: folder,
		Limit:  listPageSize,
		Offset: offset,
		SortBy: listSortBy{Column: "name", Order: "asc"},
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/list/%s", s.baseURL, url.PathEscape(s.bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", folder, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list %q: reading response: %w", folder, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return nil, fmt.Errorf("list %q: status %d: %s", folder, resp.StatusCode, msg)
	}

	var entries []listEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("list %q: decoding response: %w", folder, err)
	}
	return entries, nil
}

// PublicURL is the unauthenticated download URL of an object in a public
// bucket.
func (s *Supabase) PublicURL(objectPath string) string {
	segments := strings.Split(strings.TrimPrefix(objectPath, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, url.PathEscape(s.bucket), strings.Join(segments, "/"))
}
