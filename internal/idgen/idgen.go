// Package idgen 生成短链标识符：URL 安全、不可预测的 base62 短串。
package idgen

import (
	"crypto/rand"
	"math/big"
)

// Alphabet 标识符字母表，62 个字母数字字符
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DefaultLength 默认标识符长度，8 字符 base62 约 48 bit 熵
const DefaultLength = 8

var base = big.NewInt(int64(len(Alphabet)))

// Generate 返回 length 个字符的随机标识符。
// 随机源为 crypto/rand：取 8 字节随机数做 base62 编码，
// 不足 length 位时左侧补 '0'，超出时截断。
func Generate(length int) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 在现代平台上不会失败，失败意味着系统熵源损坏
		panic(err)
	}

	encoded := encodeBase62(buf)
	for len(encoded) < length {
		encoded = "0" + encoded
	}
	return encoded[:length]
}

func encodeBase62(buf []byte) string {
	x := new(big.Int).SetBytes(buf)
	if x.Sign() == 0 {
		return "0"
	}

	out := make([]byte, 0, 11)
	mod := new(big.Int)
	for x.Sign() > 0 {
		x.DivMod(x, base, mod)
		out = append(out, Alphabet[mod.Int64()])
	}

	// 余数序列是低位在前，反转成高位在前
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
