package checker

import (
	"strings"
)

// ParseCookieFlags parses raw Set-Cookie values into per-cookie flag sets.
// Each value may carry several cookies joined by newlines (some proxies fold
// them that way); attributes within a cookie are separated by semicolons.
func ParseCookieFlags(setCookies []string) []CookieFlags {
	cookies := make([]CookieFlags, 0, len(setCookies))
	for _, raw := range setCookies {
		for _, line := range strings.Split(raw, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			cookies = append(cookies, parseCookieLine(line))
		}
	}
	return cookies
}

const sameSitePrefix = "samesite="

func parseCookieLine(line string) CookieFlags {
	segs := strings.Split(line, ";")
	for i := range segs {
		segs[i] = strings.TrimSpace(segs[i])
	}

	name, _, _ := strings.Cut(segs[0], "=")
	flags := CookieFlags{Name: strings.TrimSpace(name)}

	for _, s := range segs[1:] {
		lower := strings.ToLower(s)
		switch {
		case lower == "secure":
			flags.Secure = true
		case lower == "httponly":
			flags.HttpOnly = true
		case len(s) >= len(sameSitePrefix) && strings.EqualFold(s[:len(sameSitePrefix)], sameSitePrefix):
			value := strings.TrimSpace(s[len(sameSitePrefix):])
			flags.SameSite = &value
		}
	}
	return flags
}

// CookieDeductions scores cookie hygiene. Missing Secure only matters for
// HTTPS targets; missing HttpOnly is always deducted.
func CookieDeductions(cookies []CookieFlags, https bool) []Deduction {
	var out []Deduction
	for _, c := range cookies {
		name := c.Name
		if name == "" {
			name = "cookie"
		}
		if https && !c.Secure {
			out = append(out, Deduction{
				Points:         PenaltyInsecureCookie,
				Recommendation: "Cookie not marked Secure: " + name,
			})
		}
		if !c.HttpOnly {
			out = append(out, Deduction{
				Points:         PenaltyScriptableCookie,
				Recommendation: "Cookie not marked HttpOnly: " + name,
			})
		}
	}
	return out
}
