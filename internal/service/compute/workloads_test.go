package compute

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimes(t *testing.T) {
	tests := []struct {
		limit int
		want  []int
	}{
		{limit: 2, want: []int{2}},
		{limit: 10, want: []int{2, 3, 5, 7}},
		{limit: 30, want: []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}},
	}

	for _, tt := range tests {
		got, err := Primes(context.Background(), tt.limit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "limit %d", tt.limit)
	}

	got, err := Primes(context.Background(), MaxPrimeLimit)
	require.NoError(t, err)
	assert.Len(t, got, 1229)
}

func TestPrimesHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Primes(ctx, MaxPrimeLimit)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFibonacci(t *testing.T) {
	tests := []struct {
		length int
		want   string
	}{
		{length: 2, want: "1"},
		{length: 3, want: "1"},
		{length: 10, want: "34"},
		{length: 94, want: "12200160415121876738"},
		{length: 100, want: "218922995834555169026"},
	}

	for _, tt := range tests {
		seq := Fibonacci(tt.length)
		require.Len(t, seq, tt.length)
		assert.Equal(t, tt.want, Term(seq, tt.length-1).String(), "length %d", tt.length)
	}

	assert.Equal(t, "0", Fibonacci(1)[0].String())
	assert.Nil(t, Fibonacci(0))
}

func TestTermOutOfBoundsIsZero(t *testing.T) {
	seq := Fibonacci(5)
	assert.Equal(t, 0, Term(seq, 5).Cmp(big.NewInt(0)))
	assert.Equal(t, 0, Term(seq, -1).Cmp(big.NewInt(0)))
}

func TestMatrixMultiply(t *testing.T) {
	sum, err := MatrixMultiply(context.Background(), 100)
	require.NoError(t, err)
	// Every cell of ones x twos is 2*size.
	assert.Equal(t, int64(100*100*200), sum)

	sum, err = MatrixMultiply(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, sum)
}
