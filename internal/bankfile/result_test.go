package bankfile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	a, err := EncodeCNAB240(testRemittance(), nil)
	require.NoError(t, err)
	b, err := EncodeCNAB400(testRemittance(), nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"cnab240", a, FormatCNAB240},
		{"cnab400", b, FormatCNAB400},
		{"ofx sgml", []byte(sgmlStatement), FormatOFX},
		{"ofx xml", []byte(xmlStatement), FormatOFX},
	}
	for _, tt := range tests {
		got, err := Detect(tt.data)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestDetect_Unrecognized(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("date;amount\n01/02/2024;10,00\n"), []byte("   \n\n")} {
		_, err := Detect(data)
		assert.True(t, errors.Is(err, ErrUnrecognizedFormat))

		_, err = Decode(data)
		assert.True(t, errors.Is(err, ErrUnrecognizedFormat))
	}
}

func TestDecodeAs_UnknownFormat(t *testing.T) {
	_, err := DecodeAs("xlsx", []byte("x"))
	assert.True(t, errors.Is(err, ErrUnrecognizedFormat))
}

func TestResult_Records(t *testing.T) {
	data, err := EncodeCNAB240(testRemittance(), testSettlements())
	require.NoError(t, err)
	res, err := DecodeAs(FormatCNAB240, data)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records())
}
