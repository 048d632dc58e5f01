package telegram

import (
	"net"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/synthbot/core/config"
	"github.com/m3rciful/synthbot/core/telegram/netutil"
	tgsender "github.com/m3rciful/synthbot/core/telegram/sender"
)

// apiClient is the HTTP client behind every Bot API call. Dial failures and
// timeouts are retried by the transport; everything else surfaces to the
// caller.
func apiClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		// Long polling holds getUpdates open, so this stays above the poll timeout.
		Timeout:   90 * time.Second,
		Transport: &retryTransport{base: base, retries: 2, backoff: time.Second},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for n := 1; ; n++ {
		resp, err := t.base.RoundTrip(req)
		if err == nil || n > t.retries || !transportRetryable(err) {
			return resp, err
		}
		// The body was consumed; without GetBody the request cannot be replayed.
		if req.Body != nil && req.GetBody == nil {
			return nil, err
		}
		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			next.Body = body
		}
		req = next

		timer := time.NewTimer(t.backoff * time.Duration(n))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

// transportRetryable keeps transport-level retries to failures where the
// request never reached Telegram or got no answer.
func transportRetryable(err error) bool {
	switch netutil.Classify(err) {
	case netutil.KindDial, netutil.KindTimeout:
		return true
	}
	return false
}

func senderOptions(c coreconfig.SenderConfig) tgsender.Options {
	return tgsender.Options{
		QueueSize:    c.QueueSize,
		Workers:      c.Workers,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: time.Duration(c.RetryBackoffMS) * time.Millisecond,
		MaxDuration:  time.Duration(c.JobTimeoutMS) * time.Millisecond,
	}
}
