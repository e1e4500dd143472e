package timestamp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Timestamp struct {
	Hours        int
	Minutes      int
	Seconds      int
	Milliseconds int
}

func FromMillis(ms int64) Timestamp {
	if ms < 0 {
		ms = 0
	}
	return Timestamp{
		Hours:        int(ms / 3_600_000),
		Minutes:      int(ms / 60_000 % 60),
		Seconds:      int(ms / 1000 % 60),
		Milliseconds: int(ms % 1000),
	}
}

func FromDuration(d time.Duration) Timestamp {
	return FromMillis(d.Milliseconds())
}

func (t Timestamp) Millis() int64 {
	return int64(t.Hours)*3_600_000 + int64(t.Minutes)*60_000 + int64(t.Seconds)*1000 + int64(t.Milliseconds)
}

func (t Timestamp) Duration() time.Duration {
	return time.Duration(t.Millis()) * time.Millisecond
}

// Add shifts t by a signed offset. The result never goes below zero.
func (t Timestamp) Add(offsetMs int64) Timestamp {
	return FromMillis(t.Millis() + offsetMs)
}

func (t Timestamp) Compare(other Timestamp) int {
	a, b := t.Millis(), other.Millis()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (t Timestamp) Before(other Timestamp) bool {
	return t.Compare(other) < 0
}

// CueTime renders t shifted by offsetMs in the script's playback notation:
// total seconds, a dot, and zero-padded milliseconds.
func CueTime(t Timestamp, offsetMs int64) string {
	shifted := t.Add(offsetMs)
	total := shifted.Millis()
	return fmt.Sprintf("%d.%03d", total/1000, total%1000)
}

func ParseCueTime(value string) (Timestamp, error) {
	value = strings.TrimSpace(value)
	secs, millis, ok := strings.Cut(value, ".")
	if !ok || secs == "" || millis == "" || len(millis) > 3 {
		return Timestamp{}, fmt.Errorf("invalid cue time %q", value)
	}
	for len(millis) < 3 {
		millis += "0"
	}
	s, errS := strconv.ParseInt(secs, 10, 64)
	ms, errMS := strconv.ParseInt(millis, 10, 64)
	if errS != nil || errMS != nil || s < 0 || ms < 0 {
		return Timestamp{}, fmt.Errorf("invalid cue time %q", value)
	}
	return FromMillis(s*1000 + ms), nil
}

// FFmpeg renders t as HH:MM:SS.mmm for -ss / -to arguments.
func FFmpeg(t Timestamp) string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hours, t.Minutes, t.Seconds, t.Milliseconds)
}

// RenpyRange is the partial-playback prefix Ren'Py accepts in front of an
// audio path.
func RenpyRange(start, end Timestamp) string {
	return fmt.Sprintf("<from %s to %s>", CueTime(start, 0), CueTime(end, 0))
}

func (t Timestamp) String() string {
	return FFmpeg(t)
}
