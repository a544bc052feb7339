package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDate_AddDays_CrossesMonthAndYear(t *testing.T) {
	tests := []struct {
		name string
		from string
		days int
		want string
	}{
		{"前日", "2024-05-10", -1, "2024-05-09"},
		{"月初から前月末", "2024-03-01", -1, "2024-02-29"},
		{"年末から翌年", "2023-12-31", 1, "2024-01-01"},
		{"ページ幅分進める", "2024-05-10", 3, "2024-05-13"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustParseDate(tt.from).AddDays(tt.days)
			if got.String() != tt.want {
				t.Errorf("AddDays(%d) = %s, want %s", tt.days, got, tt.want)
			}
		})
	}
}

func TestDate_Compare(t *testing.T) {
	a := MustParseDate("2024-05-09")
	b := MustParseDate("2024-05-10")

	if !a.Before(b) || b.Before(a) {
		t.Error("2024-05-09 は 2024-05-10 より前であるべき")
	}
	if !b.After(a) {
		t.Error("2024-05-10 は 2024-05-09 より後であるべき")
	}
	if a.Compare(a) != 0 {
		t.Error("同じ日付の比較は0であるべき")
	}
	if MinDate(a, b) != a {
		t.Errorf("MinDate = %s, want %s", MinDate(a, b), a)
	}
}

func TestDate_JSONRoundTripInStruct(t *testing.T) {
	var q Question
	if err := json.Unmarshal([]byte(`{"id":"2024-05-10","text":"好きな季節は？","answer_count":3}`), &q); err != nil {
		t.Fatalf("Unmarshal がエラーを返した: %v", err)
	}
	if q.ID != MustParseDate("2024-05-10") {
		t.Errorf("ID = %s, want 2024-05-10", q.ID)
	}
	if q.AnswerCount != 3 {
		t.Errorf("AnswerCount = %d, want 3", q.AnswerCount)
	}

	b, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal がエラーを返した: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("出力がJSONではない: %v", err)
	}
	if raw["id"] != "2024-05-10" {
		t.Errorf("id = %v, want 2024-05-10", raw["id"])
	}
}

func TestDate_UnmarshalInvalid(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2024/05/10"`), &d); err == nil {
		t.Error("不正な形式でエラーが返されるべき")
	}
}

func TestDate_Scan(t *testing.T) {
	var d Date
	if err := d.Scan("2024-05-10"); err != nil {
		t.Fatalf("Scan(string) がエラーを返した: %v", err)
	}
	if d.String() != "2024-05-10" {
		t.Errorf("Scan(string) = %s", d)
	}

	if err := d.Scan(time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Scan(time.Time) がエラーを返した: %v", err)
	}
	if d.String() != "2024-01-02" {
		t.Errorf("Scan(time.Time) = %s", d)
	}

	if err := d.Scan(42); err == nil {
		t.Error("未対応の型でエラーが返されるべき")
	}
}

func TestParseLoadType(t *testing.T) {
	for _, lt := range []LoadType{LoadRefresh, LoadPrepend, LoadAppend} {
		got, ok := ParseLoadType(lt.String())
		if !ok || got != lt {
			t.Errorf("ParseLoadType(%q) = %v, %v", lt.String(), got, ok)
		}
	}
	if _, ok := ParseLoadType("sideways"); ok {
		t.Error("未知の値はfalseを返すべき")
	}
}
