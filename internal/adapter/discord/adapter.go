package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/config"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/interfaces"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/utils/httpclient"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// publicThread Discord 公共子区类型
const publicThread = 11

type channelResp struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ThreadMetadata *struct {
		Locked   bool `json:"locked"`
		Archived bool `json:"archived"`
	} `json:"thread_metadata"`
}

type messageResp struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type activeThreadsResp struct {
	Threads []channelResp `json:"threads"`
}

type Adapter struct {
	cfg        *config.DiscordConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewAdapter 创建聊天平台REST适配器
func NewAdapter(cfg *config.DiscordConfig, logger *logrus.Logger) interfaces.ThreadPlatformAdapter {
	return &Adapter{
		cfg: cfg,
		httpClient: httpclient.New(httpclient.Options{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
			Proxy:   cfg.Proxy,
		}, logger),
		logger: logger,
	}
}

// do 调用平台REST接口。429 归为可重试的 FetchError；404 交由调用方以 found=false 处理。
func (a *Adapter) do(ctx context.Context, method, path string, body any, dest any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+a.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, xerrors.NewFetchError("discord", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.WithError(err).Warn("关闭Discord响应体失败")
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, xerrors.NewFetchError("discord", fmt.Errorf("rate limited: %s %s", method, path))
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil
	case resp.StatusCode >= 500:
		return resp.StatusCode, xerrors.NewFetchError("discord", fmt.Errorf("HTTP %d: %s %s", resp.StatusCode, method, path))
	case resp.StatusCode >= 400:
		return resp.StatusCode, fmt.Errorf("discord HTTP %d: %s %s", resp.StatusCode, method, path)
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return resp.StatusCode, xerrors.NewValidationError("解析Discord响应失败: %v", err)
		}
	}
	return resp.StatusCode, nil
}

func (a *Adapter) CreateThread(ctx context.Context, name string) (string, error) {
	var ch channelResp
	code, err := a.do(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/threads", a.cfg.ChannelID),
		map[string]any{"name": name, "type": publicThread, "auto_archive_duration": 1440},
		&ch)
	if err != nil {
		return "", err
	}
	if code == http.StatusNotFound {
		return "", fmt.Errorf("目标频道 %s 不存在", a.cfg.ChannelID)
	}
	a.logger.WithFields(logrus.Fields{"thread_id": ch.ID, "name": name}).Info("子区创建成功")
	return ch.ID, nil
}

func (a *Adapter) RenameThread(ctx context.Context, threadID, name string) error {
	code, err := a.do(ctx, http.MethodPatch, "/channels/"+threadID, map[string]any{"name": name}, nil)
	if err != nil {
		return err
	}
	if code == http.StatusNotFound {
		return fmt.Errorf("子区 %s 不存在，无法重命名", threadID)
	}
	return nil
}

func (a *Adapter) LockThread(ctx context.Context, threadID string) error {
	code, err := a.do(ctx, http.MethodPatch, "/channels/"+threadID,
		map[string]any{"locked": true, "archived": true}, nil)
	if err != nil {
		return err
	}
	if code == http.StatusNotFound {
		return fmt.Errorf("子区 %s 不存在，无法锁定", threadID)
	}
	return nil
}

func (a *Adapter) PostMessage(ctx context.Context, threadID, content string) (string, error) {
	var msg messageResp
	code, err := a.do(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/messages", threadID),
		map[string]any{"content": content}, &msg)
	if err != nil {
		return "", err
	}
	if code == http.StatusNotFound {
		return "", fmt.Errorf("子区 %s 不存在，无法发消息", threadID)
	}
	return msg.ID, nil
}

func (a *Adapter) EditMessage(ctx context.Context, threadID, messageID, content string) error {
	code, err := a.do(ctx, http.MethodPatch,
		fmt.Sprintf("/channels/%s/messages/%s", threadID, messageID),
		map[string]any{"content": content}, nil)
	if err != nil {
		return err
	}
	if code == http.StatusNotFound {
		return fmt.Errorf("消息 %s 不存在", messageID)
	}
	return nil
}

func (a *Adapter) GetMessage(ctx context.Context, threadID, messageID string) (string, bool, error) {
	var msg messageResp
	code, err := a.do(ctx, http.MethodGet,
		fmt.Sprintf("/channels/%s/messages/%s", threadID, messageID), nil, &msg)
	if err != nil {
		return "", false, err
	}
	if code == http.StatusNotFound {
		return "", false, nil
	}
	return msg.Content, true, nil
}

func (a *Adapter) FindThreadByTag(ctx context.Context, tag string) (*interfaces.ThreadInfo, error) {
	var list activeThreadsResp
	code, err := a.do(ctx, http.MethodGet,
		fmt.Sprintf("/guilds/%s/threads/active", a.cfg.GuildID), nil, &list)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound {
		return nil, nil
	}
	for _, th := range list.Threads {
		if strings.Contains(th.Name, tag) {
			info := &interfaces.ThreadInfo{ThreadID: th.ID, Name: th.Name}
			if th.ThreadMetadata != nil {
				info.Locked = th.ThreadMetadata.Locked
			}
			return info, nil
		}
	}
	return nil, nil
}

func (a *Adapter) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	var ch channelResp
	code, err := a.do(ctx, http.MethodGet, "/channels/"+threadID, nil, &ch)
	if err != nil {
		return false, err
	}
	return code != http.StatusNotFound, nil
}
