package interfaces

import "context"

// ThreadInfo 平台上发现的子区信息
type ThreadInfo struct {
	ThreadID string
	Name     string
	Locked   bool
}

// ThreadPlatformAdapter 聊天平台子区操作接口。
// not found / locked / rate-limited 等错误降级为重建或跳过，绝不中断后台循环。
type ThreadPlatformAdapter interface {
	// CreateThread 在频道中创建子区，返回子区ID
	CreateThread(ctx context.Context, name string) (string, error)
	// RenameThread 重命名子区
	RenameThread(ctx context.Context, threadID, name string) error
	// LockThread 锁定子区（不可逆）
	LockThread(ctx context.Context, threadID string) error
	// PostMessage 在子区内发消息，返回消息ID
	PostMessage(ctx context.Context, threadID, content string) (string, error)
	// EditMessage 覆盖已有消息
	EditMessage(ctx context.Context, threadID, messageID, content string) error
	// GetMessage 读回消息内容，消息不存在时返回 ("", false, nil)
	GetMessage(ctx context.Context, threadID, messageID string) (string, bool, error)
	// FindThreadByTag 按命名标记直查比赛对应的子区，未找到返回 nil
	FindThreadByTag(ctx context.Context, tag string) (*ThreadInfo, error)
	// ThreadExists 直接校验子区ID是否仍然存在可达
	ThreadExists(ctx context.Context, threadID string) (bool, error)
}
