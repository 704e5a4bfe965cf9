package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mytutor_backend/internal/config"
	"mytutor_backend/internal/model"
)

// PageContent 单个模块页面的提取结果
type PageContent struct {
	Text       string           `json:"text"`
	Videos     []model.MediaRef `json:"videos"`
	Audios     []model.MediaRef `json:"audios"`
	Files      []model.MediaRef `json:"files"`
	Screenshot []byte           `json:"screenshot,omitempty"`
}

// ModuleLink 模块发现阶段返回的链接
type ModuleLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// BrowserDriver 浏览器自动化网关。课程页面的打开、发现和提取都经过它，
// 实现决定底层是真实浏览器还是测试桩
type BrowserDriver interface {
	Open(ctx context.Context, courseURL string) (title string, err error)
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	DiscoverModules(ctx context.Context) ([]ModuleLink, error)
	ExtractContent(ctx context.Context) (*PageContent, error)
	Close(ctx context.Context) error
}

// GatewayDriver 通过 HTTP 调用独立部署的浏览器网关
type GatewayDriver struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewGatewayDriver(cfg config.BrowserConfig, sessionID string) *GatewayDriver {
	return &GatewayDriver{
		baseURL:   cfg.GatewayURL,
		sessionID: sessionID,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (d *GatewayDriver) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload := map[string]interface{}{"session_id": d.sessionID}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		payload["session_id"] = d.sessionID
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("browser gateway %s returned %d: %s", path, resp.StatusCode, string(raw))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (d *GatewayDriver) Open(ctx context.Context, courseURL string) (string, error) {
	var resp struct {
		Title string `json:"title"`
	}
	err := d.post(ctx, "/open", map[string]string{"url": courseURL}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Title, nil
}

func (d *GatewayDriver) Navigate(ctx context.Context, url string) error {
	return d.post(ctx, "/navigate", map[string]string{"url": url}, nil)
}

func (d *GatewayDriver) Title(ctx context.Context) (string, error) {
	var resp struct {
		Title string `json:"title"`
	}
	if err := d.post(ctx, "/title", nil, &resp); err != nil {
		return "", err
	}
	return resp.Title, nil
}

func (d *GatewayDriver) DiscoverModules(ctx context.Context) ([]ModuleLink, error) {
	var resp struct {
		Modules []ModuleLink `json:"modules"`
	}
	if err := d.post(ctx, "/discover", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Modules, nil
}

func (d *GatewayDriver) ExtractContent(ctx context.Context) (*PageContent, error) {
	var resp PageContent
	if err := d.post(ctx, "/extract", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (d *GatewayDriver) Close(ctx context.Context) error {
	return d.post(ctx, "/close", nil, nil)
}
