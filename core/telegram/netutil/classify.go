// Package netutil sorts failed Telegram API calls into kinds and decides
// which of them are worth repeating.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Kind is the error_kind recorded for a failed call.
type Kind string

// Known kinds.
const (
	KindNone     Kind = ""
	KindTimeout  Kind = "timeout"
	KindCanceled Kind = "canceled"
	KindDNS      Kind = "dns"
	KindDial     Kind = "dial"
	KindTLS      Kind = "tls"
	KindFlood    Kind = "flood"
	KindServer   Kind = "http_5xx"
	KindClient   Kind = "http_4xx"
	KindUnknown  Kind = "unknown"
)

// Retryable reports whether repeating the call may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindDial, KindFlood, KindServer:
		return true
	}
	return false
}

// Classify maps err to its Kind. A nil error is KindNone.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return KindFlood
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return KindTimeout
		}
		return KindDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindDial
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return KindTLS
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		if k := Classify(urlErr.Err); k != KindUnknown {
			return k
		}
	}

	switch code := statusCode(err); {
	case code >= 500:
		return KindServer
	case code == 429:
		return KindFlood
	case code >= 400:
		return KindClient
	}
	return KindUnknown
}

// RetryAfter returns the wait Telegram asked for when it rejected a call under
// flood control, or zero.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

// statusCode extracts the Bot API error code, falling back to a trailing
// "(NNN)" in the message as telebot formats it.
func statusCode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return 400
	}
	msg := err.Error()
	open, end := strings.LastIndexByte(msg, '('), strings.LastIndexByte(msg, ')')
	if open < 0 || end <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : end]))
	if convErr != nil {
		return 0
	}
	return code
}
