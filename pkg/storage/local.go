package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage 本地目录语料存储
// 依次枚举多个根目录，文件标识符为根目录加文件名组成的路径
type LocalStorage struct {
	roots []string // 语料根目录，按优先级排列
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Paths []string // 语料目录列表，不存在的目录会被跳过
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("no corpus paths configured")
	}

	roots := make([]string, 0, len(cfg.Paths))
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve corpus path %s: %v", p, err)
		}
		roots = append(roots, abs)
	}

	return &LocalStorage{roots: roots}, nil
}

// List 枚举所有根目录下的文件
// 与历史行为保持一致，只扫描目录第一层，不递归子目录
func (s *LocalStorage) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo

	for _, root := range s.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read corpus directory %s: %v", root, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, FileInfo{
				Name: filepath.Join(root, entry.Name()),
				Size: info.Size(),
			})
		}
	}

	return files, nil
}

// Get 打开文件
func (s *LocalStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := s.checkWithinRoots(name); err != nil {
		return nil, err
	}

	file, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %v", name, err)
	}
	return file, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(ctx context.Context, name string) (bool, error) {
	if err := s.checkWithinRoots(name); err != nil {
		return false, nil
	}

	_, err := os.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// checkWithinRoots 确保路径位于某个语料根目录之内
func (s *LocalStorage) checkWithinRoots(name string) error {
	abs, err := filepath.Abs(name)
	if err != nil {
		return fmt.Errorf("invalid file path %s: %v", name, err)
	}

	for _, root := range s.roots {
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != ".." && !filepath.IsAbs(rel) && (len(rel) < 3 || rel[:3] != ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("file %s is outside corpus directories", name)
}
