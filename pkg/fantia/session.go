package fantia

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// SessionCookieName is the cookie carrying the logged in session
const SessionCookieName = "_session_id"

func newJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// setSessionCookie installs the session id for the site domain and its
// subdomains (asset hosts live under the same registrable domain).
func setSessionCookie(jar http.CookieJar, base *url.URL, sessionID string) {
	cookie := &http.Cookie{
		Name:  SessionCookieName,
		Value: sessionID,
		Path:  "/",
	}
	if host := base.Hostname(); net.ParseIP(host) == nil {
		cookie.Domain = host
	}
	jar.SetCookies(base, []*http.Cookie{cookie})
}

// loadCookieFile reads a Netscape cookies.txt export into jar
func loadCookieFile(jar http.CookieJar, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer f.Close()

	byHost := make(map[string][]*http.Cookie)
	secureHost := make(map[string]bool)
	count := 0

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return 0, fmt.Errorf("cookie file %s line %d: expected 7 fields, got %d", path, lineNo, len(fields))
		}

		domain := fields[0]
		host := strings.TrimPrefix(domain, ".")
		cookie := &http.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if strings.EqualFold(fields[1], "TRUE") {
			cookie.Domain = host
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			cookie.Expires = time.Unix(exp, 0)
		}

		byHost[host] = append(byHost[host], cookie)
		secureHost[host] = secureHost[host] || cookie.Secure
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read cookie file: %w", err)
	}

	for host, cookies := range byHost {
		scheme := "http"
		if secureHost[host] {
			scheme = "https"
		}
		jar.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: "/"}, cookies)
	}
	return count, nil
}
