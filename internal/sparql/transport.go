package sparql

import (
	"bytes"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// debugHTTPTransport wraps an http.RoundTripper to log request/response details
type debugHTTPTransport struct {
	transport http.RoundTripper
	logger    *logrus.Entry
}

// RoundTrip implements http.RoundTripper with debug logging
func (d *debugHTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	d.logger.Debugf("%s %s", req.Method, req.URL.String())

	resp, err := d.transport.RoundTrip(req)
	if err != nil {
		d.logger.Debugf("request failed: %v", err)
		return resp, err
	}

	d.logger.Debugf("response status: %d %s", resp.StatusCode, resp.Status)

	// Surface error response bodies, then restore them for the caller
	if resp.StatusCode >= 400 {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			d.logger.Debugf("failed to read error response body: %v", readErr)
		} else {
			d.logger.WithField("status", resp.StatusCode).Debugf("error response body: %s", string(bodyBytes))
			resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}
	}

	return resp, err
}

// enableHTTPDebugLogging wraps the HTTP client with debug logging
func enableHTTPDebugLogging(client *http.Client, logger *logrus.Entry) *http.Client {
	if client == nil {
		client = &http.Client{}
	}

	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}

	client.Transport = &debugHTTPTransport{
		transport: client.Transport,
		logger:    logger,
	}

	return client
}
