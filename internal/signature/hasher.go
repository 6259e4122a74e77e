package signature

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const DefaultAlgorithm = "sha256"

var ErrUnknownAlgorithm = errors.New("unknown fingerprint algorithm")

// 签名文件只有在生产者和使用者约定同一算法时才有意义
var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil) // 无 key 时不会出错
		return h
	},
	"sha3-256": sha3.New256,
}

// Hasher 计算文件内容指纹 (小写十六进制)
type Hasher struct {
	name    string
	newHash func() hash.Hash
}

// NewHasher 按名称选择摘要算法，名称不区分大小写，空字符串使用默认算法
func NewHasher(algorithm string) (*Hasher, error) {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	if name == "" {
		name = DefaultAlgorithm
	}
	fn, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	return &Hasher{name: name, newHash: fn}, nil
}

func (h *Hasher) Algorithm() string { return h.name }

// Fingerprint 对整个缓冲区求摘要
func (h *Hasher) Fingerprint(data []byte) string {
	d := h.newHash()
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil))
}

// Algorithms 支持的算法名，已排序
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
