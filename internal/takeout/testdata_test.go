package takeout

import "strings"

// activityHTML mimics the "My Activity" export markup.
func activityHTML(cards ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="mdl-grid">`)
	for _, c := range cards {
		b.WriteString(c)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func activityCard(content, caption string) string {
	return `<div class="outer-cell mdl-cell mdl-cell--12-col mdl-shadow--2dp"><div class="mdl-grid">` +
		`<div class="header-cell mdl-cell mdl-cell--12-col"><p class="mdl-typography--title">Google Pay<br></p></div>` +
		`<div class="content-cell mdl-cell mdl-cell--6-col mdl-typography--body-1">` + content + `</div>` +
		`<div class="content-cell mdl-cell mdl-cell--6-col mdl-typography--body-1 mdl-typography--text-right"></div>` +
		`<div class="content-cell mdl-cell mdl-cell--12-col mdl-typography--caption">` + caption + `</div>` +
		`</div></div>`
}
