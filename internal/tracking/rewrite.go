package tracking

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var hrefRegex = regexp.MustCompile(`href="(https?://[^"]+)"`)

// PixelURL builds the open-tracking pixel URL for a send.
func PixelURL(baseURL, secret string, t Token) string {
	data, sig := t.Encode(secret)
	return fmt.Sprintf("%s/t/open/%s/%s", strings.TrimRight(baseURL, "/"), data, sig)
}

// ClickURL wraps a destination link in the click-tracking redirect.
func ClickURL(baseURL, secret string, t Token, target string) string {
	data, sig := t.Encode(secret)
	return fmt.Sprintf("%s/t/click/%s/%s?u=%s",
		strings.TrimRight(baseURL, "/"), data, sig, url.QueryEscape(target))
}

// ReportURL wraps a research report link in the report-click redirect.
// The token's CampaignID slot carries the company id for report links.
func ReportURL(baseURL, secret string, t Token, target string) string {
	data, sig := t.Encode(secret)
	return fmt.Sprintf("%s/t/report/%s/%s?u=%s",
		strings.TrimRight(baseURL, "/"), data, sig, url.QueryEscape(target))
}

// InjectTracking rewrites absolute links in an HTML body through the
// click redirect and appends the open pixel. Anchors that already point
// at the tracking host are left alone so re-sends don't double-wrap.
func InjectTracking(htmlBody, baseURL, secret string, t Token) string {
	base := strings.TrimRight(baseURL, "/")

	rewritten := hrefRegex.ReplaceAllStringFunc(htmlBody, func(match string) string {
		target := hrefRegex.FindStringSubmatch(match)[1]
		if strings.HasPrefix(target, base+"/t/") {
			return match
		}
		return fmt.Sprintf(`href="%s"`, ClickURL(baseURL, secret, t, target))
	})

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none">`,
		PixelURL(baseURL, secret, t))

	if i := strings.LastIndex(strings.ToLower(rewritten), "</body>"); i >= 0 {
		return rewritten[:i] + pixel + rewritten[i:]
	}
	return rewritten + pixel
}
