package mmap

import "math/bits"

// MaxSize is the largest supported mapping: 2 GiB on 32-bit platforms and
// 256 TiB on 64-bit ones.
const MaxSize = 1<<31 - 1 + (1<<48-1<<31)*(bits.UintSize/64)
