// Package model はドメインモデルを定義する。
package model

import "time"

// Question は日替わりの質問を表す。IDは出題日。
type Question struct {
	ID          Date      `json:"id"`
	Text        string    `json:"text"`
	AnswerCount int       `json:"answer_count"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Answer は質問に対するユーザーの回答を表す。
// Answererは回答一覧APIでのみ埋め込まれる。
type Answer struct {
	QID       Date      `json:"qid"`
	UID       string    `json:"uid"`
	Text      string    `json:"text,omitempty"`
	Photo     string    `json:"photo,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
	Answerer  *User     `json:"answerer,omitempty"`
}

// QuestionAndAnswer はプロフィール画面の回答一覧の1要素を表す。
type QuestionAndAnswer struct {
	Question Question `json:"question"`
	Answer   *Answer  `json:"answer,omitempty"`
}

// Image は画像アップロードAPIのレスポンスを表す。
type Image struct {
	URL string `json:"url"`
}
