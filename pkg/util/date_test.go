package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestBucketStart(t *testing.T) {
    at := time.Date(2024, 10, 10, 10, 42, 17, 0, time.UTC)
    cases := map[string]time.Time{
        "1m":  time.Date(2024, 10, 10, 10, 42, 0, 0, time.UTC),
        "5m":  time.Date(2024, 10, 10, 10, 40, 0, 0, time.UTC),
        "15m": time.Date(2024, 10, 10, 10, 30, 0, 0, time.UTC),
        "1h":  time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC),
        "4h":  time.Date(2024, 10, 10, 8, 0, 0, 0, time.UTC),
        "1d":  time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC),
    }
    for tf, want := range cases {
        if got := BucketStart(at, tf); !got.Equal(want) {
            t.Fatalf("%s: got %v want %v", tf, got, want)
        }
    }
}
