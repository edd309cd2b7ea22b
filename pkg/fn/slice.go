package fn

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// FlatMap applies f to each element and concatenates the results in order.
// Elements for which f returns nothing contribute nothing.
func FlatMap[T, U any](items []T, f func(T) []U) []U {
	var out []U
	for _, v := range items {
		out = append(out, f(v)...)
	}
	return out
}

// Sum adds up n(v) over items.
func Sum[T any](items []T, n func(T) int) int {
	total := 0
	for _, v := range items {
		total += n(v)
	}
	return total
}
