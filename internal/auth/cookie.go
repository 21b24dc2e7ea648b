package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// cookieSigner はセッションIDにHMAC-SHA256の署名を付与・検証する。
// 鍵が空の場合は署名せず、値をそのまま扱う。
type cookieSigner struct {
	key []byte
}

func newCookieSigner(secret string) cookieSigner {
	if secret == "" {
		return cookieSigner{}
	}
	return cookieSigner{key: []byte(secret)}
}

// sign は"<value>.<signature>"形式の文字列を返す。
func (s cookieSigner) sign(value string) string {
	if s.key == nil {
		return value
	}
	return value + "." + s.mac(value)
}

// unsign は署名を検証し、元の値を返す。署名が一致しない場合はfalseを返す。
func (s cookieSigner) unsign(signed string) (string, bool) {
	if s.key == nil {
		return signed, signed != ""
	}

	i := strings.LastIndexByte(signed, '.')
	if i <= 0 {
		return "", false
	}
	value, sig := signed[:i], signed[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.mac(value))) {
		return "", false
	}
	return value, true
}

func (s cookieSigner) mac(value string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
