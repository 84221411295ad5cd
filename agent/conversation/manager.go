package conversation

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultMaxResults = 1000

// GroupChatManager 运行群聊并按会话 ID 保存最近的结果
type GroupChatManager struct {
	chat       *GroupChat
	results    map[string]*Result
	order      []string
	maxResults int
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewGroupChatManager 创建管理器，maxResults<=0 时使用默认值
func NewGroupChatManager(chat *GroupChat, maxResults int, logger *zap.Logger) *GroupChatManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &GroupChatManager{
		chat:       chat,
		results:    make(map[string]*Result),
		maxResults: maxResults,
		logger:     logger.With(zap.String("component", "group_chat_manager")),
	}
}

// Chat 底层编排器
func (m *GroupChatManager) Chat() *GroupChat { return m.chat }

// Start 运行群聊并保存结果（包括超时产生的部分结果）
func (m *GroupChatManager) Start(ctx context.Context, req RunRequest) (*Result, error) {
	result, err := m.chat.Run(ctx, req)
	if result != nil {
		m.store(result)
	}
	return result, err
}

// GetResult 按会话 ID 获取结果
func (m *GroupChatManager) GetResult(id string) (*Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	return r, ok
}

// Len 保存的结果数
func (m *GroupChatManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}

func (m *GroupChatManager) store(r *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[r.ConversationID]; !ok {
		m.order = append(m.order, r.ConversationID)
	}
	m.results[r.ConversationID] = r
	for len(m.order) > m.maxResults {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.results, oldest)
		m.logger.Debug("result evicted", zap.String("conversation_id", oldest))
	}
}
