package model

import "time"

// VerdictKind 单个文件的检测结论
type VerdictKind int

const (
	Clean VerdictKind = iota
	SignatureMatch
	PatternMatch
)

func (k VerdictKind) String() string {
	switch k {
	case Clean:
		return "clean"
	case SignatureMatch:
		return "signature_match"
	case PatternMatch:
		return "pattern_match"
	default:
		return "unknown"
	}
}

// Verdict 一次文件检测的结果，生成后不再修改
type Verdict struct {
	Path        string
	Kind        VerdictKind
	Message     string // 给人看的结论
	Pattern     string // 命中的可疑片段 (仅 PatternMatch)
	Fingerprint string // 文件内容摘要
	Algorithm   string // 摘要算法, e.g. sha256
	ContentType string // 根据文件头识别的类型, e.g. "elf", "unknown"
	ScannedAt   time.Time
}

// Threat 是否属于威胁 (签名或特征命中)
func (v Verdict) Threat() bool {
	return v.Kind != Clean
}

// FileChange 轮询发现的新增/修改文件
type FileChange struct {
	Path    string
	ModTime time.Time
	IsNew   bool // 此前从未在记录中出现
	Verdict Verdict
	Err     error // 检测失败时非空
}
