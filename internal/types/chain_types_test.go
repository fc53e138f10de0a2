package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectChain(t *testing.T) {
	tests := []struct {
		text string
		want ChainTicker
		ok   bool
	}{
		{"Claim on Arbitrum before Q3", ChainArbitrum, true},
		{"solana ecosystem drop", ChainSolana, true},
		{"SOL rewards", ChainSOL, true},
		{"ETH and BSC", ChainETH, true},
		{"no chain here", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectChain(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestIsEVMChain(t *testing.T) {
	assert.True(t, IsEVMChain("ethereum"))
	assert.True(t, IsEVMChain("Base"))
	assert.False(t, IsEVMChain("solana"))
	assert.False(t, IsEVMChain(""))
}
