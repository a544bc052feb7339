// Package model はドメインモデルを定義する。
package model

// AuthToken はトークン発行・更新APIのレスポンスを表す。
// アクセストークンは常に、それを更新できるリフレッシュトークンと対で保持する。
type AuthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthRequirement はリクエストにBearerトークンを付与する必要があるかを表す。
// ゼロ値はAuthBearer。トークン発行・更新APIだけがAuthNoneを使う。
type AuthRequirement int

const (
	// AuthBearer はAuthorizationヘッダにアクセストークンを付与する。
	AuthBearer AuthRequirement = iota
	// AuthNone はトークンを付与しない。循環した認証を避けるためトークンAPIで使用する。
	AuthNone
)

// String はログ出力用の名前を返す。
func (a AuthRequirement) String() string {
	switch a {
	case AuthNone:
		return "none"
	default:
		return "bearer"
	}
}

// LoadType はページングで伸ばすキャッシュ窓の端、または窓全体の置き換えを表す。
type LoadType int

const (
	// LoadRefresh はキャッシュ窓全体を置き換える。初回ロードはこの種別。
	LoadRefresh LoadType = iota
	// LoadPrepend は新しい側（未来側）の端を伸ばす。
	LoadPrepend
	// LoadAppend は古い側（過去側）の端を伸ばす。
	LoadAppend
)

// String はメトリクスラベルとログ用の名前を返す。
func (t LoadType) String() string {
	switch t {
	case LoadPrepend:
		return "prepend"
	case LoadAppend:
		return "append"
	default:
		return "refresh"
	}
}

// ParseLoadType は文字列からLoadTypeを返す。未知の値はfalse。
func ParseLoadType(s string) (LoadType, bool) {
	switch s {
	case "refresh":
		return LoadRefresh, true
	case "prepend":
		return LoadPrepend, true
	case "append":
		return LoadAppend, true
	default:
		return LoadRefresh, false
	}
}
