package transcriber

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// TracedClient times every phase of an upload: lookup, connect, handshake,
// body upload, server processing and download.
type TracedClient struct {
	client *http.Client
}

func NewTracedClient() *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

// TracedResponse is a fully read response.
type TracedResponse struct {
	Body       []byte
	StatusCode int
	Metrics    *NetworkMetrics
}

func (r *TracedResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// phaseTimer fills a NetworkMetrics from httptrace callbacks. Phases that
// never happen, like DNS on a reused connection, stay zero.
type phaseTimer struct {
	m *NetworkMetrics

	dns, connect, handshake time.Time
	conn, upload, firstByte time.Time
}

func (p *phaseTimer) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { p.dns = time.Now() },
		DNSDone:  func(httptrace.DNSDoneInfo) { p.m.DNS = time.Since(p.dns) },
		ConnectStart: func(string, string) {
			p.connect = time.Now()
		},
		ConnectDone: func(string, string, error) { p.m.Connect = time.Since(p.connect) },
		TLSHandshakeStart: func() {
			p.handshake = time.Now()
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) { p.m.TLS = time.Since(p.handshake) },
		GotConn: func(info httptrace.GotConnInfo) {
			p.conn = time.Now()
			p.m.ConnReused = info.Reused
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.upload = time.Now()
			p.m.Upload = p.upload.Sub(p.conn)
		},
		GotFirstResponseByte: func() {
			p.firstByte = time.Now()
			p.m.TTFB = p.firstByte.Sub(p.upload)
		},
	}
}

func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	timer := &phaseTimer{m: &NetworkMetrics{}}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), timer.trace()))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !timer.firstByte.IsZero() {
		timer.m.Download = time.Since(timer.firstByte)
	}
	timer.m.Total = time.Since(start)

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Metrics:    timer.m,
	}, nil
}

// WarmConnection opens a connection to url so the first upload can reuse it.
// Failures are ignored; the upload will dial on its own.
func (c *TracedClient) WarmConnection(url string) {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
