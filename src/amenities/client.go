// Package amenities resolves which amenities a place offers, either through
// the API's own place-amenities endpoint or directly from storage.
package amenities

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"hbnb/src/types"
)

// Client calls GET {Base}/places/{id}/amenities.
type Client struct {
	Base string
	HTTP *http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{Timeout: timeout},
	}
}

func (c *Client) PlaceAmenityIDs(ctx context.Context, placeID string) ([]string, error) {
	var out []struct {
		ID string `json:"id"`
	}
	if err := c.getJSON(ctx, "/places/"+url.PathEscape(placeID)+"/amenities", &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out))
	for _, a := range out {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("amenity lookup get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StorageLister reads amenity links straight from storage.
type StorageLister struct {
	Store types.PlaceStore
}

func (s StorageLister) PlaceAmenityIDs(ctx context.Context, placeID string) ([]string, error) {
	amenities, err := s.Store.PlaceAmenities(ctx, placeID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(amenities))
	for _, a := range amenities {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

var (
	_ types.AmenityLister = (*Client)(nil)
	_ types.AmenityLister = StorageLister{}
)
