package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// 常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀)
	FileModeReadOnly fs.FileMode = 0644

	// rwxr-xr-x 目錄用
	FileModeDir fs.FileMode = 0755
)

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
// 每筆 Write 都會 fsync，回傳 nil 代表已落盤
type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// NewWAL 開啟或建立一個 WAL 檔案，必要時建立上層目錄
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	if err := os.MkdirAll(filepath.Dir(path), FileModeDir); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Write 寫入一筆資料並刷入硬碟
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ErrCorrupt WAL 中間出現無法解析的資料
var ErrCorrupt = errors.New("wal: corrupt record")

// ReadAll 從頭依序讀取所有資料
// callback 每次收到一筆 JSON 原始資料，避免一次將所有資料載入記憶體
//
// 最後一筆只寫了一半 (寫入途中 crash) 時截掉殘缺的尾巴，之後的 Write 接在最後一筆完整資料後面
// 中間的資料損毀回傳 ErrCorrupt
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var good int64
	for {
		var raw json.RawMessage
		err := decoder.Decode(&raw)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return w.truncate(good)
		case err != nil:
			return fmt.Errorf("%w at offset %d: %v", ErrCorrupt, good, err)
		}
		good = decoder.InputOffset()
		if err := callback(raw); err != nil {
			return err
		}
	}
}

func (w *WAL) truncate(size int64) error {
	if err := w.file.Truncate(size); err != nil {
		return fmt.Errorf("truncate torn tail: %w", err)
	}
	return w.file.Sync()
}
