package chunker

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
	DefaultPage      = 1
)

// Chunk is one window of a document's extracted text.
type Chunk struct {
	Index   int
	Content string
	Page    int
}

// Split cuts text into overlapping windows of chunkSize characters (runes).
// Each window starts chunkSize-overlap characters after the previous one; when
// overlap is not smaller than chunkSize the step is a full chunkSize.
// The trailing partial window is always emitted, and empty text still yields
// a single empty chunk at index 0.
func Split(text string, chunkSize int, overlap int, defaultPage int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	step := chunkSize - overlap
	if overlap < 0 || step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	runes := []rune(text)
	totalLen := len(runes)

	var chunks []Chunk
	for start := 0; start < totalLen; start += step {
		end := start + chunkSize
		if end > totalLen {
			end = totalLen
		}

		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: string(runes[start:end]),
			Page:    defaultPage,
		})
	}

	if len(chunks) == 0 {
		chunks = append(chunks, Chunk{Index: 0, Content: "", Page: defaultPage})
	}

	return chunks
}

// Join rebuilds the text from chunks produced by Split with the same overlap,
// dropping the leading overlap of every chunk after the first.
func Join(chunks []Chunk, overlap int) string {
	if overlap < 0 {
		overlap = 0
	}

	var out []rune
	for i, c := range chunks {
		runes := []rune(c.Content)
		if i > 0 {
			cut := overlap
			if cut > len(runes) {
				cut = len(runes)
			}
			runes = runes[cut:]
		}
		out = append(out, runes...)
	}
	return string(out)
}
