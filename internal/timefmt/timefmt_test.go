package timefmt

import (
	"errors"
	"testing"
	"time"
)

func TestParseXMLTVTime_withOffset(t *testing.T) {
	got, err := ParseXMLTVTime("20231205120000 +0000")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2023, 12, 5, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseXMLTVTime_noOffset(t *testing.T) {
	got, err := ParseXMLTVTime("20240101180000")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 1, 1, 18, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseXMLTVTime_short(t *testing.T) {
	cases := []string{"", "2024", "202401011800", "not-a-timestamp"}
	for _, s := range cases {
		if _, err := ParseXMLTVTime(s); !errors.Is(err, ErrMalformedTimestamp) {
			t.Errorf("ParseXMLTVTime(%q) err = %v, want ErrMalformedTimestamp", s, err)
		}
	}
}

func TestParseXMLTVTime_garbageOffsetFallsBack(t *testing.T) {
	got, err := ParseXMLTVTime("20240101180000 zzz")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 1, 1, 18, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseEpochSeconds(t *testing.T) {
	got := ParseEpochSeconds(1700000000)
	if got.Unix() != 1700000000 {
		t.Errorf("Unix() = %d", got.Unix())
	}
}

func TestParseEpochString(t *testing.T) {
	got, err := ParseEpochString("1700000000")
	if err != nil {
		t.Fatal(err)
	}
	if got.Unix() != 1700000000 {
		t.Errorf("Unix() = %d", got.Unix())
	}
	if _, err := ParseEpochString("soon"); !errors.Is(err, ErrMalformedTimestamp) {
		t.Errorf("err = %v, want ErrMalformedTimestamp", err)
	}
}

func TestParseCalendarDate(t *testing.T) {
	got, err := ParseCalendarDate("2012-09-27")
	if err != nil {
		t.Fatal(err)
	}
	if got.Year() != 2012 || got.Month() != 9 || got.Day() != 27 {
		t.Errorf("got %v", got)
	}
}
