package analysis

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"
)

// HeadSize filetype 库建议读取的文件头长度
const HeadSize = 262

const UnknownType = "unknown"

// DetectType 根据文件头 (magic bytes) 识别真实类型，返回扩展名
// 纯文本一类没有魔数的内容返回 unknown
func DetectType(head []byte) string {
	if len(head) > HeadSize {
		head = head[:HeadSize]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return UnknownType
	}
	return kind.Extension
}

// Report 伪装文件检测结果
type Report struct {
	IsMasquerade bool   // 后缀与文件头不符
	RealExt      string // 文件头识别出的后缀
	DeclaredExt  string // 文件名声明的后缀
	RiskLevel    string // HIGH, MEDIUM, SAFE
	Message      string
}

// TypeInspector 检查文件后缀是否与真实类型一致
// 只做报告，不会修改或隔离文件
type TypeInspector struct {
	fs       afero.Fs
	aliasMap map[string]map[string]bool
	mu       sync.RWMutex
}

func NewTypeInspector(fs afero.Fs) *TypeInspector {
	t := &TypeInspector{
		fs:       fs,
		aliasMap: make(map[string]map[string]bool),
	}
	t.initRules()
	return t
}

// initRules 合法的“表里不一”
func (t *TypeInspector) initRules() {
	// zip 家族是最大的误报源
	t.Allow("zip",
		"docx", "docm", "dotx", "dotm",
		"xlsx", "xlsm", "xltx", "xltm",
		"pptx", "pptm", "potx", "potm",
		"jar", "war", "ear", "apk",
		"odt", "ods", "odp",
		"crx", "whl", "nupkg",
	)
	t.Allow("xml", "svg", "html", "htm", "kml", "plist", "config")
	t.Allow("mp4", "m4v", "mov", "qt")
	t.Allow("mov", "qt", "mp4")
	t.Allow("ogg", "ogv", "oga", "spx")
	t.Allow("exe", "dll", "sys", "scr", "cpl", "ocx")
	t.Allow("gz", "gzip", "tgz")
}

// Allow 登记 realType 可以合法使用的后缀
func (t *TypeInspector) Allow(realType string, exts ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.aliasMap[realType]; !ok {
		t.aliasMap[realType] = map[string]bool{realType: true}
	}
	for _, ext := range exts {
		t.aliasMap[realType][ext] = true
	}
}

func (t *TypeInspector) allowed(realExt, declaredExt string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.aliasMap[realExt][declaredExt]
}

// Inspect 读取文件头并和声明后缀比对
func (t *TypeInspector) Inspect(filePath string) (*Report, error) {
	declaredExt := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))

	file, err := t.fs.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file failed: %w", err)
	}
	defer file.Close()

	head := make([]byte, HeadSize)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read file head failed: %w", err)
	}
	if n == 0 {
		return &Report{DeclaredExt: declaredExt, RealExt: UnknownType, RiskLevel: "SAFE", Message: "Empty file"}, nil
	}

	realExt := DetectType(head[:n])
	if realExt == UnknownType {
		return &Report{
			RealExt:     realExt,
			DeclaredExt: declaredExt,
			RiskLevel:   "SAFE",
			Message:     "Unknown binary signature (likely text)",
		}, nil
	}

	if declaredExt == "" {
		// 没有后缀但有可识别的可执行文件头，值得提示
		risk := "SAFE"
		if isExecutable(realExt) {
			risk = "MEDIUM"
		}
		return &Report{RealExt: realExt, RiskLevel: risk, Message: fmt.Sprintf("No extension, header is '%s'", realExt)}, nil
	}

	if realExt == declaredExt || t.allowed(realExt, declaredExt) {
		return &Report{RealExt: realExt, DeclaredExt: declaredExt, RiskLevel: "SAFE"}, nil
	}

	risk := "MEDIUM"
	if isExecutable(realExt) {
		risk = "HIGH" // 可执行文件伪装成其它格式
	}
	return &Report{
		IsMasquerade: true,
		RealExt:      realExt,
		DeclaredExt:  declaredExt,
		RiskLevel:    risk,
		Message:      fmt.Sprintf("Type Mismatch! Header is '%s' but file is '%s'", realExt, declaredExt),
	}, nil
}

func isExecutable(ext string) bool {
	return ext == "exe" || ext == "elf" || ext == "dll"
}
