package storage

import (
	"context"
	"io"
)

// FileInfo 语料文件信息
type FileInfo struct {
	Name string // 文件标识符，读取时原样传回Get
	Size int64  // 文件大小（字节）
}

// Storage 语料存储接口
// 语料加载器通过该接口枚举和读取XML文件，不关心文件存放在本地还是对象存储
type Storage interface {
	// List 枚举存储中的所有文件
	List(ctx context.Context) ([]FileInfo, error)

	// Get 按标识符读取文件内容，调用方负责关闭
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists 检查文件是否存在
	Exists(ctx context.Context, name string) (bool, error)
}
