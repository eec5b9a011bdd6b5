package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vibbin/vibbin/internal/schemas/public"
)

// GetStatus fetches the account's profile and friends with presence
func GetStatus(ctx context.Context, client *http.Client) (*public.StatusResponse, error) {
	var res public.StatusResponse
	if err := getJSON(ctx, client, "/status", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetCallHistory fetches the newest call log entries of the account
func GetCallHistory(ctx context.Context, client *http.Client) ([]public.CallLog, error) {
	var res []public.CallLog
	if err := getJSON(ctx, client, "/calls/history", &res); err != nil {
		return nil, err
	}
	return res, nil
}

func getJSON(ctx context.Context, client *http.Client, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("request failed (%s): %s", res.Status, string(body))
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("error decoding %s: %w", path, err)
	}
	return nil
}
