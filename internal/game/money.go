package game

import (
	"fmt"
	"math"
	"strconv"
)

// Cents is a fixed-point money amount in hundredths of a currency unit.
// All balance and winnings arithmetic happens on this type; floats only
// appear at the wire boundary.
type Cents int64

// CentsFromFloat converts a wire amount (e.g. 100.25) to cents.
func CentsFromFloat(v float64) Cents {
	return Cents(math.Round(v * 100))
}

func (c Cents) Float64() float64 {
	return float64(c) / 100
}

// MarshalJSON renders the amount as a plain 2-decimal number, matching the
// wire format clients already parse.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// WinningsAt computes the payout for a bet at a multiplier given in basis
// points. The truncating integer division is exactly
// floor(amount * multiplier * 100) / 100.
func WinningsAt(amount Cents, multiplierBps int64) Cents {
	return Cents(int64(amount) * multiplierBps / 100)
}

// FormatBps renders a basis-point multiplier as a 2-decimal string, the
// format CNT_MULTIPLY and ROUND_CRASHED carry on the wire.
func FormatBps(bps int64) string {
	return strconv.FormatInt(bps/100, 10) + "." + fmt.Sprintf("%02d", bps%100)
}
