package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// GenerateToken derives the opaque identifier that ties pixel, click and
// unsubscribe callbacks back to one delivered email. Unguessable, URL-safe,
// and stable for the lifetime of the tracking record.
func GenerateToken(ref string) string {
	hash := sha256.Sum256([]byte(uuid.NewString() + ref))
	return base64.URLEncoding.EncodeToString(hash[:])[:20]
}

// PixelURL is the 1x1 image URL embedded in outgoing HTML.
func PixelURL(baseURL, token string) string {
	return fmt.Sprintf("%s/tracking/open/%s", strings.TrimRight(baseURL, "/"), token)
}

// ClickURL wraps a destination link in the redirect endpoint.
func ClickURL(baseURL, token, target string) string {
	return fmt.Sprintf("%s/tracking/click/%s?url=%s",
		strings.TrimRight(baseURL, "/"), token, url.QueryEscape(target))
}

// UnsubscribeURL is the one-click opt-out link added to every email.
func UnsubscribeURL(baseURL, token string) string {
	return fmt.Sprintf("%s/tracking/unsubscribe/%s", strings.TrimRight(baseURL, "/"), token)
}

// ClassifyDevice buckets a User-Agent into mobile, tablet or desktop.
// Mobile wins over tablet for agents that claim both.
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return "unknown"
	}
	switch {
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		return "mobile"
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		return "tablet"
	default:
		return "desktop"
	}
}

// TransparentGIF is the 1x1 pixel served by the open endpoint.
var TransparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21,
	0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00, 0x3b,
}
