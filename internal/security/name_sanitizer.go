package security

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDisplayNameLength は表示名として保存する最大文字数（rune単位）。
const MaxDisplayNameLength = 100

// NameSanitizer はIdPやフォームから受け取った表示名を保存用に正規化する。
type NameSanitizer interface {
	// Sanitize はHTMLタグと制御文字を取り除き、連続する空白を1つにまとめる。
	// 結果がMaxDisplayNameLengthを超える場合は切り詰める。
	Sanitize(name string) string
}

// nameSanitizer はbluemondayのStrictPolicyでタグを全て除去する。
// Policyはスレッドセーフなため複数リクエストから共有できる。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

var _ NameSanitizer = (*nameSanitizer)(nil)

// NewNameSanitizer はNameSanitizerの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は表示名を正規化する。
func (s *nameSanitizer) Sanitize(name string) string {
	if name == "" {
		return ""
	}

	// StrictPolicyは&や<をエスケープするため、表示名としては元の文字に戻す
	stripped := html.UnescapeString(s.policy.Sanitize(name))

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, stripped)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if utf8.RuneCountInString(cleaned) > MaxDisplayNameLength {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:MaxDisplayNameLength]))
	}
	return cleaned
}
