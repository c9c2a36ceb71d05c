package ticket

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInQR_ProducesPNGOfBookingCode(t *testing.T) {
	data, err := CheckInQR("ABCDE12345")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, QRSize, img.Bounds().Dx())
	assert.Equal(t, QRSize, img.Bounds().Dy())
}

func TestCheckInQR_EmptyCodeRejected(t *testing.T) {
	_, err := CheckInQR("")
	require.Error(t, err)
}
