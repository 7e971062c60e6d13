package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sucaihub/backend/internal/logger"
)

// Manager 后台任务管理器：每个任务一个 ticker 循环，Stop 时统一退出
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	tasks  map[string]*Task
	mu     sync.RWMutex
}

// Task 一个周期性后台任务
type Task struct {
	Name     string
	Interval time.Duration
	Handler  func(ctx context.Context) error
	Running  bool
	LastRun  time.Time
	LastErr  error
}

// TaskStatus 任务状态快照（管理后台查看用）
type TaskStatus struct {
	Name    string    `json:"name"`
	Running bool      `json:"running"`
	LastRun time.Time `json:"last_run"`
	LastErr string    `json:"last_error,omitempty"`
}

var (
	manager *Manager
	once    sync.Once
)

// GetManager 获取任务管理器单例
func GetManager() *Manager {
	once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		manager = &Manager{
			ctx:    ctx,
			cancel: cancel,
			tasks:  make(map[string]*Task),
		}
	})
	return manager
}

// Register 注册任务，需在 Start 之前调用
func (m *Manager) Register(name string, interval time.Duration, handler func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[name] = &Task{
		Name:     name,
		Interval: interval,
		Handler:  handler,
	}
	logger.Info("后台任务已注册", zap.String("task", name), zap.Duration("interval", interval))
}

// Start 启动所有已注册任务
func (m *Manager) Start() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logger.Info("启动后台任务管理器", zap.Int("task_count", len(m.tasks)))
	for name, task := range m.tasks {
		m.wg.Add(1)
		go m.runLoop(name, task)
	}
}

func (m *Manager) runLoop(name string, task *Task) {
	defer m.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	// 启动时先跑一轮
	m.execute(name, task)

	for {
		select {
		case <-m.ctx.Done():
			logger.Info("后台任务已停止", zap.String("task", name))
			return
		case <-ticker.C:
			m.execute(name, task)
		}
	}
}

func (m *Manager) execute(name string, task *Task) {
	m.mu.Lock()
	task.Running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		task.Running = false
		task.LastRun = time.Now()
		m.mu.Unlock()
	}()

	if err := task.Handler(m.ctx); err != nil {
		m.mu.Lock()
		task.LastErr = err
		m.mu.Unlock()
		logger.Error("后台任务执行失败", zap.String("task", name), zap.Error(err))
	}
}

// RunNow 立即触发一次指定任务（管理后台手动补跑用）
func (m *Manager) RunNow(name string) bool {
	m.mu.RLock()
	task, ok := m.tasks[name]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	go m.execute(name, task)
	return true
}

// Stop 停止所有任务并等待循环退出
func (m *Manager) Stop() {
	logger.Info("正在停止后台任务管理器...")
	m.cancel()
	m.wg.Wait()
	logger.Info("后台任务管理器已停止")
}

// GetStatus 获取所有任务状态
func (m *Manager) GetStatus() []TaskStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]TaskStatus, 0, len(m.tasks))
	for _, task := range m.tasks {
		status := TaskStatus{
			Name:    task.Name,
			Running: task.Running,
			LastRun: task.LastRun,
		}
		if task.LastErr != nil {
			status.LastErr = task.LastErr.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}
