// Package ticket renders boarding artifacts for confirmed bookings.
package ticket

import (
    "fmt"

    "github.com/skip2/go-qrcode"
)

// QRSize is the edge length in pixels of a generated check-in QR code.
const QRSize = 300

// CheckInQR returns a PNG image encoding the booking code.  Gate staff scan
// it and hit the check-in endpoint with the decoded code; the QR carries
// nothing but the code, so a leaked image exposes no contact data.
func CheckInQR(bookingCode string) ([]byte, error) {
    if bookingCode == "" {
        return nil, fmt.Errorf("booking code is empty")
    }
    qr, err := qrcode.New(bookingCode, qrcode.Medium)
    if err != nil {
        return nil, fmt.Errorf("generate qr: %w", err)
    }
    png, err := qr.PNG(QRSize)
    if err != nil {
        return nil, fmt.Errorf("encode qr png: %w", err)
    }
    return png, nil
}
