// Package model はドメインモデルを定義する。
package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// dateLayout はAPIとキャッシュで共通の日付表現（YYYY-MM-DD）。
const dateLayout = "2006-01-02"

// Date は日単位の暦日を表す。
// 質問の主キーであり、ページングのカーソルとしても使用する。
// 全順序を持ち、フィードの正規順序は日付の降順（新しい順）。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf は時刻が属するロケーションでの暦日を返す。
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate はYYYY-MM-DD形式の文字列をDateに変換する。
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("日付のパースに失敗しました: %w", err)
	}
	return DateOf(t), nil
}

// MustParseDate はParseDateの失敗時にpanicする版。テストと定数定義用。
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String はYYYY-MM-DD形式の文字列を返す。
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero はゼロ値かどうかを返す。
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// In は指定ロケーションにおけるその日の0時を返す。
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays はn日後（負数ならn日前）の日付を返す。月末・年末をまたぐ計算はtime.AddDateに任せる。
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Compare はdがoより前なら-1、同じなら0、後なら+1を返す。
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before はdがoより前の日付かどうかを返す。
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After はdがoより後の日付かどうかを返す。
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// MinDate は2つの日付のうち古い方を返す。
func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// MarshalText はJSONおよびクエリパラメータ用のテキスト表現を返す。
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText はYYYY-MM-DD形式のテキストを読み込む。
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value はdatabase/sqlへ渡す値を返す。キャッシュには文字列で保存するため辞書順が日付順になる。
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan はdatabase/sqlから読み込んだ値をDateに変換する。
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case time.Time:
		*d = DateOf(v)
		return nil
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("Dateに変換できない型です: %T", src)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
