package rtmp

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Debuger 把一条连接收发的chunk逐行写到文件, nil时所有方法都是空操作
type Debuger struct {
	roleID string
	mu     sync.Mutex
	file   *os.File
}

// NewDebuger 打开debug文件, 失败返回错误
func NewDebuger(roleID, fileName string) (*Debuger, error) {
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Debuger{roleID: roleID, file: f}, nil
}

// Enabled debug开关是否打开
func (t *Debuger) Enabled() bool {
	return t != nil && t.file != nil
}

// Debug 写入debug信息
func (t *Debuger) Debug(format string, args ...interface{}) {
	if !t.Enabled() {
		return
	}
	msg := time.Now().Format("2006-01-02 15:04:05.000") + " " + t.roleID + " " + fmt.Sprintf(format, args...) + "\n"
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		_, _ = t.file.WriteString(msg)
	}
}

// Close 停止debug
func (t *Debuger) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}
