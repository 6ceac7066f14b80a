package common

// CeilDiv divides a by b rounding up. b must be non-zero.
func CeilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}
