package utils

import (
	"crypto/tls"
	"net/http"
	"time"
)

const defaultHTTPTimeout = time.Second * 30

type HTTPClientOptions struct {
	VerifySSL bool
	Timeout   time.Duration
}

func httpTransport(verifySSL bool) *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !verifySSL},
		Proxy:           http.ProxyFromEnvironment,
	}
}

// NewHTTPClient builds a client whose timeout bounds every single request.
func NewHTTPClient(opts HTTPClientOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{
		Transport: httpTransport(opts.VerifySSL),
		Timeout:   timeout,
	}
}
