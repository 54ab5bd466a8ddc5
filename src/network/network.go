package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"market-agent/src/helpers"
	"market-agent/src/logger"
	"market-agent/src/models"
)

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager *helpers.ProxyManager
	Logger       *logger.Logger
	BaseDelay    time.Duration

	client   *http.Client
	clientMu sync.Mutex
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent),
		Logger:       log,
		BaseDelay:    time.Second,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	var timeout time.Duration
	if nm.Config.Network.RequestTimeout > 0 {
		timeout = time.Duration(nm.Config.Network.RequestTimeout) * time.Second
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	nm.clientMu.Lock()
	nm.client = nm.createClient()
	nm.clientMu.Unlock()
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) httpClient() *http.Client {
	nm.clientMu.Lock()
	defer nm.clientMu.Unlock()
	return nm.client
}

// -----------------------------------------------------------------------------

// Get performs a GET request, retrying network.retries times and rotating
// proxies between attempts.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewNetworkError("invalid url", err)
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqUrl.RawQuery = q.Encode()
	finalUrl := reqUrl.String()

	attempt := 0
	body, err := helpers.RetryWithBackoff(ctx, nm.Logger, "GET "+reqUrl.Host+reqUrl.Path, nm.Config.Network.MaxRetries, nm.BaseDelay, func() ([]byte, error) {
		if attempt > 0 {
			nm.rotateProxy()
		}
		attempt++
		return nm.do(ctx, finalUrl)
	})
	if err != nil {
		return nil, helpers.NewNetworkError(fmt.Sprintf("GET %s%s failed", reqUrl.Host, reqUrl.Path), err)
	}
	return body, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, finalUrl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalUrl, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := nm.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		nm.Logger.Info("Request blocked (%d)", resp.StatusCode)
		return nil, fmt.Errorf("blocked (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
