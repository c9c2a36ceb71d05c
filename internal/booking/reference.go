package booking

import (
    "crypto/rand"
    "fmt"
)

// Booking codes use the Crockford base32 alphabet: no I, L, O or U, so codes
// survive being read over the phone and typed from a printed ticket.
const codeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// codeLength is the number of alphabet characters in a booking code.
// 32^10 values make birthday collisions across retained bookings
// negligible, and creation re-rolls on the rare duplicate anyway.
const codeLength = 10

// newBookingCode returns a random booking code.  The underlying call to
// crypto/rand ensures the codes are not guessable.
func newBookingCode() (string, error) {
    buf := make([]byte, codeLength)
    if _, err := rand.Read(buf); err != nil {
        return "", fmt.Errorf("read random: %w", err)
    }
    out := make([]byte, codeLength)
    for i, b := range buf {
        out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
    }
    return string(out), nil
}
