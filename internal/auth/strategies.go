package auth

import (
	"net/http"
)

// StrategyDeps は認証ストラテジー一式の構築に必要な依存。
type StrategyDeps struct {
	Resolver AccountResolver
	Verifier CredentialVerifier

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	// OAuthHTTPClient はGoogleとの通信に使うクライアント。nilの場合はhttp.DefaultClient。
	OAuthHTTPClient *http.Client
}

// Strategies はサーバー起動時に構築し、ハンドラーへ明示的に渡す認証ストラテジー一式。
type Strategies struct {
	Google      *GoogleStrategy
	Local       *LocalStrategy
	Codec       SessionCodec
	GoogleOAuth OAuthProvider
}

// NewStrategies は設定済みの認証ストラテジー一式を生成する。
// グローバルな登録は行わない。
func NewStrategies(deps StrategyDeps) *Strategies {
	return &Strategies{
		Google: NewGoogleStrategy(deps.Resolver),
		Local:  NewLocalStrategy(deps.Verifier),
		Codec:  SessionCodec{},
		GoogleOAuth: NewGoogleOAuthProvider(GoogleOAuthConfig{
			ClientID:     deps.GoogleClientID,
			ClientSecret: deps.GoogleClientSecret,
			RedirectURL:  deps.GoogleCallbackURL,
			HTTPClient:   deps.OAuthHTTPClient,
		}),
	}
}
