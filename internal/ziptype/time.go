package ziptype

import (
	"fmt"
	"time"
)

// DOSTime is an MS-DOS timestamp as stored in ZIP headers.
// Seconds have two second resolution and years start at 1980.
type DOSTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int

	// RawTime and RawDate are the packed header values.
	RawTime uint16
	RawDate uint16
}

// DecodeDOSTime unpacks a DOS date and time pair.
func DecodeDOSTime(date, tm uint16) DOSTime {
	return DOSTime{
		Year:    int(date>>9) + 1980,
		Month:   int(date>>5) & 0xF,
		Day:     int(date) & 0x1F,
		Hour:    int(tm >> 11),
		Minute:  int(tm>>5) & 0x3F,
		Second:  int(tm&0x1F) * 2,
		RawTime: tm,
		RawDate: date,
	}
}

// Time converts the timestamp to a time.Time in UTC.
// Out of range fields are normalized by time.Date.
func (t DOSTime) Time() time.Time {
	return time.Date(t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, t.Second, 0, time.UTC)
}

func (t DOSTime) String() string {
	return fmt.Sprintf("%d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}
