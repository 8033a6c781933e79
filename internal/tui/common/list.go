package common

// VisibleRange returns the [start, end) window of a list of total items that
// fits in height lines, keeping current roughly centered. overhead is the
// number of lines the view spends outside the list.
func VisibleRange(total, current, height, overhead, linesPerItem int) (int, int) {
	maxVisible := 3
	if height > 0 {
		if space := height - overhead; space > 0 {
			maxVisible = space / linesPerItem
		}
		maxVisible = min(max(maxVisible, 1), 30)
	}

	if total <= maxVisible {
		return 0, total
	}

	start := 0
	if current > maxVisible/2 {
		start = current - maxVisible/2
	}

	end := start + maxVisible
	if end > total {
		end = total
		start = max(end-maxVisible, 0)
	}
	return start, end
}
