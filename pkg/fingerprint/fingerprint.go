package fingerprint

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Attributes are the raw device/client characteristics a fingerprint is
// derived from. The embedding application supplies them through a Collector.
type Attributes struct {
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	Platform         string `json:"platform"`
	CookiesEnabled   bool   `json:"cookies_enabled"`
	// SurfaceDigest is an opaque digest of a rendering surface probe,
	// supplied by the client when available.
	SurfaceDigest string `json:"surface_digest,omitempty"`
}

// Fingerprint binds a session to the device it was created on.
// Equality requires the hash to match; the critical fields are additionally
// compared one by one as a stronger hijacking signal, since a forged partial
// object could otherwise carry a copied hash.
type Fingerprint struct {
	Attributes
	Hash string `json:"hash"`
}

// Generate derives a fingerprint from the given attributes using a SHA3-256
// digest over their canonical serialization.
func Generate(ctx context.Context, attrs Attributes) (*Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	components := []string{
		attrs.UserAgent,
		attrs.ScreenResolution,
		attrs.Timezone,
		attrs.Language,
		attrs.Platform,
		strconv.FormatBool(attrs.CookiesEnabled),
		attrs.SurfaceDigest,
	}

	h := sha3.New256()
	// Length-prefixed framing so "ab|c" and "a|bc" never collide.
	for _, c := range components {
		h.Write([]byte(strconv.Itoa(len(c))))
		h.Write([]byte{'|'})
		h.Write([]byte(c))
	}

	return &Fingerprint{
		Attributes: attrs,
		Hash:       hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Match reports whether two fingerprints identify the same device.
// Both the full hash and the critical fields (user agent, platform, timezone)
// must agree.
func (f *Fingerprint) Match(other *Fingerprint) bool {
	if f == nil || other == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(f.Hash), []byte(other.Hash)) != 1 {
		return false
	}
	return f.UserAgent == other.UserAgent &&
		f.Platform == other.Platform &&
		f.Timezone == other.Timezone
}

// DeviceInfo is an informational classification of the client, stored on the
// session for diagnostics. It carries no security weight.
type DeviceInfo struct {
	Browser  string `json:"browser"`
	OS       string `json:"os"`
	Platform string `json:"platform"`
	Mobile   bool   `json:"mobile"`
}

// DeriveDeviceInfo classifies a user agent string into coarse browser and OS
// buckets. Unknown agents come back as "unknown"/"unknown".
func DeriveDeviceInfo(userAgent, platform string) DeviceInfo {
	ua := strings.ToLower(userAgent)

	info := DeviceInfo{Browser: "unknown", OS: "unknown", Platform: platform}

	switch {
	case strings.Contains(ua, "edg/"):
		info.Browser = "edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		info.Browser = "opera"
	case strings.Contains(ua, "chrome"):
		info.Browser = "chrome"
	case strings.Contains(ua, "safari"):
		info.Browser = "safari"
	case strings.Contains(ua, "firefox"):
		info.Browser = "firefox"
	case strings.Contains(ua, "go-http-client"), strings.Contains(ua, "curl"):
		info.Browser = "cli"
	}

	switch {
	case strings.Contains(ua, "android"):
		info.OS = "android"
		info.Mobile = true
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		info.OS = "ios"
		info.Mobile = true
	case strings.Contains(ua, "windows"):
		info.OS = "windows"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macintosh"):
		info.OS = "macos"
	case strings.Contains(ua, "linux"):
		info.OS = "linux"
	}

	return info
}
