package reindex

import "strings"

// chunkCharCap is the per-chunk character cap.
const chunkCharCap = 1000

// siteFAQWindow flushes the sliding window after this many lines.
const siteFAQWindow = 4

// Chunk is one unit of indexable text with its metadata.
type Chunk struct {
	Text     string
	Source   string
	Category string
	Language string
	Title    string
}

// FAQPost is one record of the FAQ blog export (NL/FR content).
type FAQPost struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tags  string `json:"tags"`
}

// BuildChunks turns the two source corpora into chunks: one chunk per
// FAQ post, and a sliding window over the site FAQ lines that flushes
// every four accumulated lines or when a category header appears. A
// header is a short line with no question mark and no surrounding
// whitespace.
func BuildChunks(posts []FAQPost, siteLines []string) []Chunk {
	var chunks []Chunk

	for _, post := range posts {
		if post.Title == "" && post.Body == "" {
			continue
		}
		lang := "nl"
		if strings.Contains(strings.ToLower(post.Tags), "fr") {
			lang = "fr"
		}
		chunks = append(chunks, Chunk{
			Text:     capChars(post.Title+"\n"+post.Body, chunkCharCap),
			Source:   "FAQ.xlsx",
			Category: "blog_post",
			Language: lang,
			Title:    post.Title,
		})
	}

	var current []string
	category := "general"
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:     capChars(strings.Join(current, "\n"), chunkCharCap),
			Source:   "FAQS_SITE.docx",
			Category: category,
			Language: "en",
			Title:    current[0],
		})
		current = nil
	}
	for _, line := range siteLines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) < 60 && !strings.Contains(line, "?") && line == strings.TrimSpace(line) {
			if len(current) >= 2 {
				flush()
			}
			category = line
			continue
		}
		current = append(current, line)
		if len(current) >= siteFAQWindow {
			flush()
		}
	}
	flush()

	return chunks
}

// capChars truncates to at most n characters without splitting a rune.
func capChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
