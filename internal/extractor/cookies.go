package extractor

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// CookieFormat identifies the on-disk layout of a cookie jar.
type CookieFormat int

const (
	CookieFormatNone CookieFormat = iota
	CookieFormatJSON
	CookieFormatNetscape
)

func (f CookieFormat) String() string {
	switch f {
	case CookieFormatJSON:
		return "json"
	case CookieFormatNetscape:
		return "netscape"
	default:
		return "none"
	}
}

// Cookie is a browser cookie captured from a logged-in session.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time // zero for session cookies
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// jsonCookie is the browser-export layout. Exporters disagree on the expiry
// key, so both are accepted.
type jsonCookie struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Domain   string   `json:"domain"`
	Path     string   `json:"path"`
	Expires  *float64 `json:"expires"`
	Expiry   *float64 `json:"expiry"`
	Secure   bool     `json:"secure"`
	HTTPOnly bool     `json:"httpOnly"`
	SameSite string   `json:"sameSite"`
}

// LoadCookies reads a cookie jar in JSON or Netscape format.
// A missing file is not an error: it returns no cookies and CookieFormatNone.
func LoadCookies(path string) ([]Cookie, CookieFormat, error) {
	if path == "" {
		return nil, CookieFormatNone, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, CookieFormatNone, nil
	}
	if err != nil {
		return nil, CookieFormatNone, fmt.Errorf("read cookie file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, CookieFormatNone, nil
	}
	if trimmed[0] == '[' {
		cookies, err := parseJSONCookies(trimmed)
		return cookies, CookieFormatJSON, err
	}
	cookies, err := parseNetscapeCookies(data)
	return cookies, CookieFormatNetscape, err
}

func parseJSONCookies(data []byte) ([]Cookie, error) {
	var raw []jsonCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		if c.Name == "" {
			continue
		}
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		exp := c.Expires
		if exp == nil {
			exp = c.Expiry
		}
		// -1 marks a session cookie in browser exports.
		if exp != nil && *exp > 0 {
			cookie.Expires = time.Unix(int64(*exp), 0)
		}
		if cookie.Path == "" {
			cookie.Path = "/"
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

const httpOnlyPrefix = "#HttpOnly_"

func parseNetscapeCookies(data []byte) ([]Cookie, error) {
	var cookies []Cookie
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			return nil, fmt.Errorf("parse netscape cookies: line %d: want 7 fields, got %d", lineNo, len(fields))
		}

		cookie := Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    strings.Join(fields[6:], "\t"),
			HTTPOnly: httpOnly,
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			cookie.Expires = time.Unix(exp, 0)
		}
		cookies = append(cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse netscape cookies: %w", err)
	}
	return cookies, nil
}
