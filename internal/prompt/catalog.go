package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Fetch downloads and validates prompts.json from the catalog base URL.
func Fetch(ctx context.Context, client *http.Client, baseURL string) (*Catalog, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"prompts.json", nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prompt catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch prompt catalog: status %d", resp.StatusCode)
	}

	var catalog Catalog
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("decode prompt catalog: %w", err)
	}
	if err := Validate(&catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// LoadFile reads and validates a catalog from a local JSON file.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt catalog: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("decode prompt catalog: %w", err)
	}
	if err := Validate(&catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}
