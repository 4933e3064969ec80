package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeecho/codeecho/internal/analysis"
)

func (a *Analyzer) contentSignals(doc *goquery.Document) analysis.ContentSignals {
	body := doc.Find("body")

	levels := make([]string, 0, 6)
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		if doc.Find(tag).Length() > 0 {
			levels = append(levels, tag)
		}
	}

	return analysis.ContentSignals{
		Title:          strings.TrimSpace(doc.Find("title").First().Text()),
		WordCount:      len(strings.Fields(body.Text())),
		ParagraphCount: doc.Find("p").Length(),
		HeadingLevels:  levels,
		SectionCount:   doc.Find("section, article").Length(),
		ListCount:      doc.Find("ul, ol").Length(),
	}
}
