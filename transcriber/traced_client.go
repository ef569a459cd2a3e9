package transcriber

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

// maxResponseBytes bounds how much of an engine reply is read.
const maxResponseBytes = 4 << 20

// TracedClient is an HTTP client that records per-phase timings of every
// request it sends. Connections are kept warm between chunks.
type TracedClient struct {
	client *http.Client
}

func NewTracedClient(insecure bool) *TracedClient {
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &TracedClient{client: &http.Client{Transport: transport}}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// phases collects the timestamps a ClientTrace reports and turns them into
// NetworkMetrics durations. The transport fires hooks from both its read and
// write goroutines, so every access holds mu.
type phases struct {
	mu sync.Mutex
	m  NetworkMetrics

	getConn, dns, connect, handshake time.Time
	gotConn, headers, request, first time.Time
}

// at runs fn under the lock.
func (p *phases) at(fn func(now time.Time)) {
	now := time.Now()
	p.mu.Lock()
	fn(now)
	p.mu.Unlock()
}

func (p *phases) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.at(func(now time.Time) { p.getConn = now }) },
		GotConn: func(info httptrace.GotConnInfo) {
			p.at(func(now time.Time) {
				p.gotConn = now
				p.m.ConnWait = now.Sub(p.getConn)
				p.m.ConnReused = info.Reused
			})
		},
		DNSStart: func(httptrace.DNSStartInfo) { p.at(func(now time.Time) { p.dns = now }) },
		DNSDone: func(httptrace.DNSDoneInfo) {
			p.at(func(now time.Time) { p.m.DNS = now.Sub(p.dns) })
		},
		ConnectStart: func(string, string) { p.at(func(now time.Time) { p.connect = now }) },
		ConnectDone: func(string, string, error) {
			p.at(func(now time.Time) { p.m.TCP = now.Sub(p.connect) })
		},
		TLSHandshakeStart: func() { p.at(func(now time.Time) { p.handshake = now }) },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			p.at(func(now time.Time) {
				p.m.TLS = now.Sub(p.handshake)
				p.m.TLSProtocol = tls.VersionName(state.Version)
			})
		},
		WroteHeaders: func() {
			p.at(func(now time.Time) {
				p.headers = now
				p.m.ReqHeaders = now.Sub(p.gotConn)
			})
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.at(func(now time.Time) {
				p.request = now
				p.m.ReqBody = now.Sub(p.headers)
			})
		},
		GotFirstResponseByte: func() {
			p.at(func(now time.Time) {
				p.first = now
				p.m.TTFB = now.Sub(p.request)
			})
		},
	}
}

// finish stamps the download and total durations and returns a copy of the
// metrics.
func (p *phases) finish(start time.Time) *NetworkMetrics {
	var m NetworkMetrics
	p.at(func(now time.Time) {
		p.m.Download = now.Sub(p.first)
		p.m.Total = now.Sub(start)
		m = p.m
	})
	return &m
}

// Do sends req and reads the whole reply body.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	p := &phases{}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), p.trace()))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
	}
	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    p.finish(start),
	}, nil
}

// Reach sends a HEAD request and reports whether the server answered at all.
// Any HTTP status counts as reachable.
func (c *TracedClient) Reach(req *http.Request) error {
	req.Method = http.MethodHead
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
