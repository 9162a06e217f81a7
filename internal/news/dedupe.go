package news

import "github.com/pep299/econ-news-digest/internal/model"

// Deduplicate removes articles sharing a URL. The first occurrence wins and
// the relative order of kept articles is preserved.
func Deduplicate(articles []model.Article) []model.Article {
	seen := make(map[string]bool, len(articles))
	unique := make([]model.Article, 0, len(articles))

	for _, article := range articles {
		if article.URL == "" || seen[article.URL] {
			continue
		}
		seen[article.URL] = true
		unique = append(unique, article)
	}

	return unique
}
