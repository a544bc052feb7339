// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーのプロフィールを表す。
// IsFollowingは自分自身を取得した場合などサーバーが返さないことがあるためポインタ。
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Photo          string    `json:"photo,omitempty"`
	AnswerCount    int       `json:"answer_count"`
	FollowerCount  int       `json:"follower_count"`
	FollowingCount int       `json:"following_count"`
	IsFollowing    *bool     `json:"is_following,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Following はIsFollowingを未設定ならfalseとして返す。
func (u *User) Following() bool {
	return u.IsFollowing != nil && *u.IsFollowing
}
