package generator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// WriteExport lays the export out under root the way an unpacked takeout
// archive does.
func WriteExport(export Export, root string) error {
	historyDir := filepath.Join(root, "Location History", "Semantic Location History")
	for _, m := range export.Months {
		name := fmt.Sprintf("%d_%s.json", m.Year, strings.ToUpper(m.Month.String()))
		path := filepath.Join(historyDir, fmt.Sprint(m.Year), name)
		doc := struct {
			TimelineObjects []TimelineObject `json:"timelineObjects"`
		}{m.Objects}
		if err := writeJSON(path, doc); err != nil {
			return err
		}
	}

	activityPath := filepath.Join(root, "Google Pay", "My Activity", "My Activity.html")
	return writeActivity(activityPath, export.Cards)
}

func writeJSON(path string, data any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}

func writeActivity(path string, cards []ActivityCard) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprint(w, `<html><head><meta charset="utf-8"><title>My Activity</title></head><body><div class="mdl-grid">`)
	for _, c := range cards {
		caption := `<b>Products:</b><br>&emsp;Google Pay<br>`
		if c.MapQuery != "" {
			href := "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(c.MapQuery)
			caption += fmt.Sprintf(`<b>Locations:</b><br>&emsp;<a href="%s">At this general area</a><br>`, html.EscapeString(href))
		}
		fmt.Fprintf(w, `<div class="outer-cell mdl-cell mdl-cell--12-col mdl-shadow--2dp"><div class="mdl-grid">`+
			`<div class="header-cell mdl-cell mdl-cell--12-col"><p class="mdl-typography--title">Google Pay<br></p></div>`+
			`<div class="content-cell mdl-cell mdl-cell--6-col mdl-typography--body-1">%s</div>`+
			`<div class="content-cell mdl-cell mdl-cell--12-col mdl-typography--caption">%s</div>`+
			`</div></div>`, html.EscapeString(c.Content), caption)
	}
	fmt.Fprint(w, `</div></body></html>`)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
