// Package antares posts device signals to the Antares oneM2M platform.
package antares

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	telemetry "child-monitoring/internal/telemetry/domain"
)

const (
	defaultTimeout = 10 * time.Second

	onem2mXMLNS   = "http://www.onem2m.org/xml/protocols"
	contentFormat = "application/json"
)

type contentInstance struct {
	XMLNS   string `json:"xmlns:m2m"`
	Format  string `json:"cnf"`
	Content string `json:"con"`
}

type envelope struct {
	CIN contentInstance `json:"m2m:cin"`
}

type arrivalCondition struct {
	Condition string `json:"kondisi"`
	DeviceID  string `json:"device_id"`
}

// Client posts content instances to a device data container.
type Client struct {
	postURL   string
	accessKey string
	client    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a client. postURL addresses the data container,
// accessKey fills the X-M2M-Origin header.
func NewClient(postURL, accessKey string, opts ...Option) (*Client, error) {
	if postURL == "" {
		return nil, errors.New("antares: empty post url")
	}
	client := &Client{
		postURL:   postURL,
		accessKey: accessKey,
		client:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SignalArrival pushes the parent-arrived condition to the wearable
// identified by deviceID.
func (c *Client) SignalArrival(ctx context.Context, deviceID string) error {
	if c == nil || c.postURL == "" {
		return errors.New("antares: empty post url")
	}
	if deviceID == "" {
		return errors.New("antares: empty device id")
	}

	con, err := json.Marshal(arrivalCondition{
		Condition: telemetry.ConditionParentArrived,
		DeviceID:  deviceID,
	})
	if err != nil {
		return err
	}
	body, err := json.Marshal(envelope{CIN: contentInstance{
		XMLNS:   onem2mXMLNS,
		Format:  contentFormat,
		Content: string(con),
	}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.postURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-M2M-Origin", c.accessKey)
	req.Header.Set("Content-Type", "application/json;ty=4")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("antares: http %d", resp.StatusCode)
	}
	return nil
}
