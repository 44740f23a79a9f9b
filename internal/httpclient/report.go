package httpclient

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// DoREPORT executes a CalDAV REPORT request. The query is either an etree
// document or a value encoding/xml can marshal.
func (c *httpClientWrapper) DoREPORT(ctx context.Context, urlStr string, depth int, query any) (*ReportResponse, error) {
	queryXML, err := encodeReportQuery(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal REPORT query: %w", err)
	}

	resp, err := c.send(ctx, outgoing{
		method: "REPORT",
		path:   urlStr,
		body:   bytes.NewReader(queryXML),
		header: http.Header{
			"Content-Type": {"application/xml; charset=utf-8"},
			"Depth":        {strconv.Itoa(depth)},
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusMultiStatus && resp.status != http.StatusOK {
		return nil, &StatusError{HTTPStatus: resp.status, Message: resp.statusLine}
	}

	var multiStatus ReportResponse
	if err := xml.Unmarshal(resp.body, &multiStatus); err != nil {
		return nil, fmt.Errorf("failed to decode multistatus of %s: %w", urlStr, err)
	}
	c.logger.Debug("REPORT complete", "url", urlStr, "depth", depth, "responses", len(multiStatus.Responses))
	return &multiStatus, nil
}

func encodeReportQuery(query any) ([]byte, error) {
	if doc, ok := query.(*etree.Document); ok {
		var buf bytes.Buffer
		if _, err := doc.WriteTo(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return xml.Marshal(query)
}

// ReportResponse represents a CalDAV REPORT response
type ReportResponse struct {
	XMLName   xml.Name         `xml:"DAV: multistatus"`
	Responses []ReportResource `xml:"DAV: response"`
}

// ReportResource is one response element of a multistatus body.
type ReportResource struct {
	Href     string         `xml:"DAV: href"`
	PropStat ReportPropStat `xml:"DAV: propstat"`
}

// ReportPropStat carries the requested properties and their status line.
type ReportPropStat struct {
	Prop struct {
		CalendarData string `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
		ETag         string `xml:"DAV: getetag"`
	} `xml:"DAV: prop"`
	Status string `xml:"DAV: status"`
}

// OK reports whether the properties were returned.
func (p ReportPropStat) OK() bool {
	return strings.Contains(p.Status, " 200 ")
}
