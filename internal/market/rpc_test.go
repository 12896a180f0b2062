package market

import (
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressWord(t *testing.T) {
	word, err := AddressWord("0xAbC0000000000000000000000000000000000123")
	require.NoError(t, err)
	assert.Len(t, word, 64)
	assert.Equal(t, strings.Repeat("0", 24)+"abc0000000000000000000000000000000000123", word)

	for _, bad := range []string{"", "0x123", "0x" + strings.Repeat("g", 40), strings.Repeat("0", 41)} {
		_, err := AddressWord(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, "input %q", bad)
	}
}

func TestUintWord(t *testing.T) {
	word, err := UintWord(sdkmath.NewInt(255))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 62)+"ff", word)

	_, err = UintWord(sdkmath.NewInt(-1))
	assert.Error(t, err)
}

func TestHexToInt(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"0x0", "0"},
		{"0xff", "255"},
		{"0x" + strings.Repeat("0", 62) + "0a", "10"},
		{"0xde0b6b3a7640000", "1000000000000000000"},
	}
	for _, tt := range tests {
		got, err := HexToInt(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.expected, got.String())
	}

	for _, bad := range []string{"", "0x", "0xzz"} {
		_, err := HexToInt(bad)
		assert.ErrorIs(t, err, ErrInvalidResult, "input %q", bad)
	}
}

func TestValidatePrice(t *testing.T) {
	quote, err := validatePrice(priceResponse{Price: "2000000000000000000000", Decimals: 18}, "WETH")
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000000", quote.Price.String())
	assert.Equal(t, 18, quote.Decimals)

	tests := []struct {
		name string
		resp priceResponse
	}{
		{"zero price", priceResponse{Price: "0", Decimals: 18}},
		{"negative price", priceResponse{Price: "-5", Decimals: 18}},
		{"garbage price", priceResponse{Price: "not-a-number", Decimals: 18}},
		{"decimals too large", priceResponse{Price: "1", Decimals: 19}},
		{"negative decimals", priceResponse{Price: "1", Decimals: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validatePrice(tt.resp, "WETH")
			assert.ErrorIs(t, err, ErrInvalidPriceData)
		})
	}
}
