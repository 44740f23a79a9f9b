package caldav

import (
	"context"
	"fmt"

	"github.com/beevik/etree"
)

const (
	nsDAV    = "DAV:"
	nsCalDAV = "urn:ietf:params:xml:ns:caldav"
)

// Multiget fetches the given object hrefs of one calendar in a single
// calendar-multiget REPORT. Objects the server does not return are absent
// from the result.
func (c *davClient) Multiget(ctx context.Context, calendarURL string, hrefs []string) ([]CalendarObject, error) {
	if len(hrefs) == 0 {
		return nil, nil
	}

	c.logger.Debug("starting calendar-multiget",
		"calendar", calendarURL,
		"objects", len(hrefs))

	resp, err := c.httpClient.DoREPORT(ctx, calendarURL, 1, buildMultiget(calendarURL, hrefs))
	if err != nil {
		return nil, fmt.Errorf("failed to execute calendar-multiget: %w", err)
	}
	return c.decodeObjects(resp)
}

func buildMultiget(calendarURL string, hrefs []string) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("C:calendar-multiget")
	root.CreateAttr("xmlns:D", nsDAV)
	root.CreateAttr("xmlns:C", nsCalDAV)

	prop := root.CreateElement("D:prop")
	prop.CreateElement("D:getetag")
	prop.CreateElement("C:calendar-data")

	for _, href := range hrefs {
		root.CreateElement("D:href").SetText(ObjectURL(calendarURL, href))
	}
	return doc
}
