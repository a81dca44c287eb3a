package api

import (
	"fmt"
	"net/url"
)

// Resolve makes a server-relative reference such as "/click/id/x" absolute
// against the API base URL.
func (c *Client) Resolve(ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(r).String()
}

// PixelURL is the open-tracking image URL for id. It is only displayed.
func (c *Client) PixelURL(id string) string {
	u := c.base.JoinPath("track")
	u.RawQuery = url.Values{"id": {id}}.Encode()
	return u.String()
}

// RedirectURL is a pixel URL that also redirects to target after counting.
func (c *Client) RedirectURL(id, target string) string {
	u := c.base.JoinPath("track")
	u.RawQuery = "id=" + url.QueryEscape(id) + "&r=" + target
	return u.String()
}

// PixelSnippet is the HTML image tag to paste into an outgoing email.
func PixelSnippet(pixelURL string) string {
	return fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" />`, pixelURL)
}
