package battlemetrics

import (
	"net/http"
	"strings"
)

// rewriteTransport rewrites all requests to use the test server so client
// code can keep its production URLs.
type rewriteTransport struct {
	Transport http.RoundTripper
	host      string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	if t.host != "" {
		host := t.host
		host = strings.TrimPrefix(host, "http://")
		host = strings.TrimPrefix(host, "https://")
		req.URL.Host = host
	}
	return t.Transport.RoundTrip(req)
}

func testClient(serverURL, token string) *Client {
	return &Client{
		Token: token,
		HTTPClient: &http.Client{
			Transport: &rewriteTransport{Transport: http.DefaultTransport, host: serverURL},
		},
	}
}
