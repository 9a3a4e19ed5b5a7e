package vec

// FloorDiv делит с округлением вниз. b > 0.
// Обычное деление в Go усекает к нулю, и -1/16 == 0 склеивает чанки вокруг начала координат.
func FloorDiv(a, b int) int {
	q := a / b
	if r := a % b; r < 0 {
		q--
	}
	return q
}

// FloorMod возвращает остаток в диапазоне [0, b). b > 0.
func FloorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
