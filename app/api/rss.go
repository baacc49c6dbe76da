package api

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/cine-comb/app/database"
	"github.com/lysyi3m/cine-comb/app/notify"
)

// ReportFeed renders stored reports as an RSS 2.0 feed
type ReportFeed struct {
	title    string
	link     string
	selfLink string
	version  string
}

func NewReportFeed(title, baseURL, version string) *ReportFeed {
	baseURL = strings.TrimRight(baseURL, "/")
	return &ReportFeed{
		title:    title,
		link:     baseURL + "/report",
		selfLink: baseURL + "/reports.rss",
		version:  version,
	}
}

func (f *ReportFeed) Run(reports []database.Report) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", f.title, 4)
	writeElement(&buf, "link", f.link, 4)
	writeElement(&buf, "description", "Daily changes in the Cine Colombia listings", 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(f.selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(reports) > 0 {
		lastBuildDate = reports[0].CreatedAt
	}
	writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	writeElement(&buf, "generator", fmt.Sprintf("Cine-Comb/%s", f.version), 4)
	writeElement(&buf, "language", "es-co", 4)

	for _, report := range reports {
		f.writeItem(&buf, report)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (f *ReportFeed) writeItem(buf *bytes.Buffer, report database.Report) {
	msg := notify.Message{Date: report.SnapshotDate, Text: report.Content, Summary: report.Summary}

	buf.WriteString("    <item>\n")
	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(fmt.Sprintf("cine-comb-report-%d", report.ID)))
	buf.WriteString("</guid>\n")

	writeElement(buf, "title", msg.Title(), 6)
	writeElement(buf, "link", f.link, 6)

	description := fmt.Sprintf("%d added, %d removed, %d retained", report.Summary.Added, report.Summary.Removed, report.Summary.Retained)
	if report.ReferenceDate != "" {
		description += " since " + report.ReferenceDate
	}
	writeElement(buf, "description", description, 6)

	// ]]> cannot appear inside a CDATA section
	buf.WriteString("      <content:encoded><![CDATA[")
	buf.WriteString(strings.ReplaceAll(report.Content, "]]>", "]]]]><![CDATA[>"))
	buf.WriteString("]]></content:encoded>\n")

	writeElement(buf, "pubDate", report.CreatedAt.Format(time.RFC1123Z), 6)
	buf.WriteString("    </item>\n")
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
