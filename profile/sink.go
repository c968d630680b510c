// MIT License
//
// Copyright (c) 2022-2026 Arsene Tochemey Gandote
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package profile

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/tochemey/profilestore/log"
)

const sinkRequestTimeout = 10 * time.Second

// sinkClient forwards successfully saved documents to an external HTTP
// endpoint. Forwarding is best-effort: failures are logged and never fail the
// save that triggered them.
type sinkClient struct {
	url    string
	client *http.Client
	logger log.Logger
}

func newSinkClient(url string, logger log.Logger) *sinkClient {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &sinkClient{
		url:    url,
		logger: logger,
		client: &http.Client{
			Timeout: sinkRequestTimeout,
			// h2c keeps one multiplexed connection to the sink instead of a
			// connection per forwarded document
			Transport: &http2.Transport{
				AllowHTTP: true,
				DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
					return dialer.DialContext(ctx, network, addr)
				},
				PingTimeout:     10 * time.Second,
				ReadIdleTimeout: 20 * time.Second,
			},
		},
	}
}

// Forward posts the serialized document to the sink. Errors are logged only.
func (s *sinkClient) Forward(ctx context.Context, ownerID string, payload []byte) {
	ctx, cancel := context.WithTimeout(ctx, sinkRequestTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		s.logger.Warnf("sink: building request for owner=%s: %v", ownerID, err)
		return
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-Profile-Owner", ownerID)

	response, err := s.client.Do(request)
	if err != nil {
		s.logger.Warnf("sink: forwarding document for owner=%s: %v", ownerID, err)
		return
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		s.logger.Warnf("sink: forwarding document for owner=%s: %v", ownerID,
			fmt.Errorf("unexpected status %d", response.StatusCode))
	}
}

// Close releases idle sink connections
func (s *sinkClient) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
