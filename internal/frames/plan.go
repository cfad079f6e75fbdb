package frames

// Plan splits r into consecutive chunks of at most chunkSize frames. The
// final chunk absorbs the remainder. A chunkSize below 1 disables chunking.
// Invalid ranges produce no chunks.
func Plan(r Range, chunkSize int) []Range {
	if !r.Valid() {
		return nil
	}
	if chunkSize < 1 || r.Duration() <= chunkSize {
		return []Range{r}
	}
	chunks := make([]Range, 0, (r.Duration()+chunkSize-1)/chunkSize)
	for start := r.Start; start <= r.End; start += chunkSize {
		end := start + chunkSize - 1
		if end > r.End {
			end = r.End
		}
		chunks = append(chunks, Range{Start: start, End: end})
	}
	return chunks
}
