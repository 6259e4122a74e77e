package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Walker 递归扫描目录树
// 根目录本身可以是指向目录的符号链接; 树内的链接不跟随，既不会被当作文件检测，也不会被当作目录进入
type Walker struct {
	ins *Inspector
	fs  afero.Fs
	log *zap.Logger
}

func NewWalker(ins *Inspector) *Walker {
	return &Walker{ins: ins, fs: ins.fs, log: ins.log}
}

// ScanTree 检测 root 下所有普通文件，返回威胁数量
// 单个文件失败只记录日志，不会中断遍历
func (w *Walker) ScanTree(root string) (int, error) {
	info, err := w.fs.Stat(root)
	if err != nil || !info.IsDir() {
		msg := "Directory not found or not accessible: " + root
		w.ins.setLastResult(msg)
		w.log.Error(msg, zap.Error(err))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s: %w", ErrIO, root, err)
		}
		return 0, fmt.Errorf("%w: %s is not a directory", ErrNotFound, root)
	}

	w.log.Info("Scanning directory", zap.String("path", root))
	threats := 0
	walkErr := afero.Walk(w.fs, walkRoot(root), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.log.Error("Filesystem error", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		v, err := w.ins.Inspect(path)
		if err != nil {
			w.log.Error("Skipping file", zap.String("path", path), zap.Error(err))
			return nil
		}
		if v.Threat() {
			threats++
		}
		return nil
	})
	if walkErr != nil {
		w.log.Error("Filesystem error", zap.String("path", root), zap.Error(walkErr))
	}

	msg := fmt.Sprintf("Directory scan completed. Found %d threats in %s", threats, root)
	w.ins.setLastResult(msg)
	w.log.Info(msg, zap.Int("threats", threats), zap.String("path", root))
	return threats, nil
}

// walkRoot 末尾加路径分隔符，afero.Walk 对根目录的 lstat 会解析符号链接
// 子路径经 filepath.Join 拼接，仍以 root 为前缀
func walkRoot(root string) string {
	if strings.HasSuffix(root, string(filepath.Separator)) {
		return root
	}
	return root + string(filepath.Separator)
}
