package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripeFee(t *testing.T) {
	// The floor keeps the fee flat across a run of adjacent amounts.
	for i := int64(0); i < 10; i++ {
		assert.Equal(t, int64(59), StripeFee(1000+i))
		assert.Equal(t, int64(320), StripeFee(10000+i))
	}
}

func TestMessageFee(t *testing.T) {
	assert.Equal(t, int32(15), MessageFee(100))
	assert.Equal(t, int32(150), MessageFee(1000))
	assert.Equal(t, int32(0), MessageFee(0))
}

func TestMessageFeeRoundsHalfToEven(t *testing.T) {
	// 15% of these amounts lands exactly on a half cent; ties go to the
	// even cent, not away from zero.
	assert.Equal(t, int32(2), MessageFee(10))  // 1.5 -> 2
	assert.Equal(t, int32(4), MessageFee(30))  // 4.5 -> 4
	assert.Equal(t, int32(8), MessageFee(50))  // 7.5 -> 8
	assert.Equal(t, int32(14), MessageFee(90)) // 13.5 -> 14
}
