package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fr33mang/helki-go/pkg/transport"
)

// serialID identifies the client generation to the cloud.
const serialID = "7"

// staticToken is a fixed bearer token.
type staticToken string

func (t staticToken) AccessToken(context.Context) (string, error) {
	return string(t), nil
}

// bearerRequester performs HTTP exchanges with bearer credentials and
// the vendor headers the cloud expects.
type bearerRequester struct {
	client *http.Client
	tokens transport.TokenSource
}

func newBearerRequester(tokens transport.TokenSource) *bearerRequester {
	return &bearerRequester{
		// Long-poll requests carry their own context deadline; the
		// client timeout is a safety net for everything else.
		client: &http.Client{Timeout: 90 * time.Second},
		tokens: tokens,
	}
}

func (r *bearerRequester) Do(ctx context.Context, method, url string, body []byte) (*transport.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	token, err := r.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Serialid", serialID)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &transport.Response{Status: resp.StatusCode, Body: data}, nil
}

// Compile-time interface satisfaction checks.
var (
	_ transport.Requester   = (*bearerRequester)(nil)
	_ transport.TokenSource = staticToken("")
)
