package utils

import (
	"maps"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type HTTPClientConfig struct {
	Timeout           time.Duration // connection setup and response headers, not the body
	KATimeout         time.Duration
	ProxyURL          string
	ProxyUsername     string
	ProxyPassword     string
	UserAgent         string
	Headers           map[string]string
	Username          string
	Password          string
	Token             string // bearer token
	MaxSocketsPerHost int
	HighThreadMode    bool // advanced socket options for high concurrency
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type FgetHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

func NewFgetHTTPClient(cfg HTTPClientConfig) *FgetHTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 90 * time.Second
	}
	if cfg.MaxSocketsPerHost <= 0 {
		cfg.MaxSocketsPerHost = DefaultMaxSocketsPerHost
	}
	cfg.Headers = maps.Clone(cfg.Headers)
	for k, v := range cfg.Headers {
		switch http.CanonicalHeaderKey(k) {
		case "Range":
			log.Warn().Str("op", "utils/http-client").Str("value", v).Msg("Ignoring Range header, byte ranges are set per request")
			delete(cfg.Headers, k)
		case "User-Agent":
			if cfg.UserAgent == "" {
				cfg.UserAgent = v
			}
			delete(cfg.Headers, k)
		}
	}
	dialer := &net.Dialer{
		Timeout:   cfg.Timeout,
		KeepAlive: 30 * time.Second,
	}
	if cfg.HighThreadMode {
		dialer.Control = func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				setSocketOptions(fd)
			})
		}
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		IdleConnTimeout:       cfg.KATimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxSocketsPerHost,
		MaxConnsPerHost:       cfg.MaxSocketsPerHost,
		ResponseHeaderTimeout: cfg.Timeout,
		TLSHandshakeTimeout:   cfg.Timeout,
		DisableCompression:    true, // identity transfers only; ranges address raw bytes
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			log.Error().Str("op", "utils/http-client").Err(err).Str("proxy", cfg.ProxyURL).Msg("Invalid proxy URL, proceeding without proxy")
		} else {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	var rt http.RoundTripper = transport
	if cfg.Token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   transport,
		}
	}
	return &FgetHTTPClient{
		client: &http.Client{Transport: rt},
		config: cfg,
	}
}

// Do applies the configured headers without touching any the request already carries,
// then the User-Agent and credentials, which always win.
func (f *FgetHTTPClient) Do(req *http.Request) (*http.Response, error) {
	for k, v := range f.config.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", BuildUserAgent(""))
	}
	if f.config.Username != "" {
		req.SetBasicAuth(f.config.Username, f.config.Password)
	}
	return f.client.Do(req)
}

func (f *FgetHTTPClient) CloseIdleConnections() {
	f.client.CloseIdleConnections()
}
