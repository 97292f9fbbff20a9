package compute

import (
	"context"
	"math/big"
)

// checkEvery controls how often long loops look at ctx.
const checkEvery = 1024

// MatrixMultiply multiplies an all-ones matrix by an all-twos matrix of the
// given size and returns the sum of the product's cells.
func MatrixMultiply(ctx context.Context, size int) (int64, error) {
	if size <= 0 {
		return 0, nil
	}

	a := make([][]int64, size)
	b := make([][]int64, size)
	for i := 0; i < size; i++ {
		a[i] = make([]int64, size)
		b[i] = make([]int64, size)
		for j := 0; j < size; j++ {
			a[i][j] = 1
			b[i][j] = 2
		}
	}

	var sum int64
	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for j := 0; j < size; j++ {
			var cell int64
			for k := 0; k < size; k++ {
				cell += a[i][k] * b[k][j]
			}
			sum += cell
		}
	}
	return sum, nil
}

// Primes returns every prime <= limit, found by trial division up to the
// square root of each candidate.
func Primes(ctx context.Context, limit int) ([]int, error) {
	var primes []int
	for n := 2; n <= limit; n++ {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isPrime(n) {
			primes = append(primes, n)
		}
	}
	return primes, nil
}

func isPrime(n int) bool {
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return n >= 2
}

// Fibonacci returns the first length terms of the sequence seeded with 0, 1.
// Terms past index 93 overflow uint64, hence big.Int.
func Fibonacci(length int) []*big.Int {
	if length <= 0 {
		return nil
	}
	seq := []*big.Int{big.NewInt(0), big.NewInt(1)}
	for i := 2; i < length; i++ {
		seq = append(seq, new(big.Int).Add(seq[i-1], seq[i-2]))
	}
	if length < len(seq) {
		seq = seq[:length]
	}
	return seq
}

// Term returns seq[i], or zero when i is out of bounds.
func Term(seq []*big.Int, i int) *big.Int {
	if i < 0 || i >= len(seq) {
		return new(big.Int)
	}
	return seq[i]
}
