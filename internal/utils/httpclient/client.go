package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Options HTTP客户端构建选项
type Options struct {
	Timeout time.Duration // 请求超时
	Proxy   string        // 代理地址，空则直连
}

// New 通用HTTP客户端构建方法（支持代理、超时、自动解压）
func New(opts Options, logger *logrus.Logger) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  false,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	// 配置代理
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			logger.WithError(err).WithField("proxy", opts.Proxy).Warn("代理地址解析失败，将不使用代理")
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
			logger.WithField("proxy", opts.Proxy).Info("HTTP客户端已配置代理")
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &compressedTransport{transport: transport, logger: logger},
	}
}

type compressedTransport struct {
	transport http.RoundTripper
	logger    *logrus.Logger
}

func (c *compressedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Add("Accept-Encoding", "gzip")
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// 处理gzip解压
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.logger.WithError(err).Warn("gzip解压失败，返回原始响应")
			return resp, nil
		}
		resp.Body = &gzipReadCloser{
			Reader: gzReader,
			closer: resp.Body,
		}
		resp.Header.Del("Content-Encoding")
	}

	return resp, nil
}

// gzipReadCloser 包装io.ReadCloser，关闭时同时释放解压reader与原始响应体
type gzipReadCloser struct {
	*gzip.Reader
	closer io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	if err := g.Reader.Close(); err != nil {
		_ = g.closer.Close()
		return err
	}
	return g.closer.Close()
}
