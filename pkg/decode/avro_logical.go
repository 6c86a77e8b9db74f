package decode

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05.000000"

	secondsPerDay = 24 * 60 * 60

	durationSize = 12
)

// formatDate renders days since 1970-01-01 in the proleptic Gregorian
// calendar.
func formatDate(days int32) string {
	return time.Unix(int64(days)*secondsPerDay, 0).UTC().Format(dateLayout)
}

// timeUnit describes one of the two Avro time-of-day resolutions.
type timeUnit struct {
	perSecond int64
	digits    int
}

var (
	millisUnit = timeUnit{perSecond: 1000, digits: 3}
	microsUnit = timeUnit{perSecond: 1000000, digits: 6}
)

// formatTime renders an offset since midnight as HH:MM:SS.fff[fff].
func formatTime(v int64, u timeUnit) string {
	hour := 3600 * u.perSecond
	minute := 60 * u.perSecond

	h := v / hour
	v -= h * hour
	m := v / minute
	v -= m * minute
	s := v / u.perSecond
	frac := v - s*u.perSecond

	return fmt.Sprintf("%02d:%02d:%02d.%0*d", h, m, s, u.digits, frac)
}

// formatTimestamp renders microseconds since the Unix epoch, UTC, with no
// leap seconds.
func formatTimestamp(micros int64) string {
	return time.UnixMicro(micros).UTC().Format(timestampLayout)
}

// formatDuration renders the 12-byte Avro duration: three little-endian
// unsigned months, days and milliseconds.
func formatDuration(b []byte) string {
	months := binary.LittleEndian.Uint32(b[0:4])
	days := binary.LittleEndian.Uint32(b[4:8])
	millis := binary.LittleEndian.Uint32(b[8:12])
	return fmt.Sprintf("@ %d month %d day %d millisecond", months, days, millis)
}

// formatBytes renders a blob in hex with the \x prefix.
func formatBytes(b []byte) string {
	return `\x` + hex.EncodeToString(b)
}

// formatDecimal renders a big-endian two's-complement unscaled integer with
// scale fractional digits. b must not be empty.
func formatDecimal(b []byte, scale int) string {
	negative := b[0]&0x80 != 0

	magnitude := new(big.Int)
	if negative {
		inverted := make([]byte, len(b))
		for i, c := range b {
			inverted[i] = ^c
		}
		magnitude.SetBytes(inverted)
		magnitude.Add(magnitude, big.NewInt(1))
		magnitude.Neg(magnitude)
	} else {
		magnitude.SetBytes(b)
	}

	return decimal.NewFromBigInt(magnitude, int32(-scale)).StringFixed(int32(scale))
}

func formatFloat32(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func formatFloat64(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
