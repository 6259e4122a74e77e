package scanner

import "bytes"

// 固定的可疑特征片段 (小写)，按顺序匹配，命中第一个即返回
var patterns = []string{
	"virus",
	"malware",
	"trojan",
	"hack",
	"exploit",
	"shell_exec",
	"eval(base64_decode",
	"system(",
	"exec(",
	"<script>evil",
	"cmd.exe /c",
}

// Patterns 返回特征列表的副本
func Patterns() []string {
	out := make([]string, len(patterns))
	copy(out, patterns)
	return out
}

// matchPattern 在已转小写的内容中查找第一个命中的特征
func matchPattern(lower []byte) (string, bool) {
	for _, p := range patterns {
		if bytes.Contains(lower, []byte(p)) {
			return p, true
		}
	}
	return "", false
}

// asciiLower 只转换 A-Z，其余字节原样保留
// 二进制内容被当作不透明字节串，不做编码识别
func asciiLower(data []byte) []byte {
	out := make([]byte, len(data))
	for i, c := range data {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
