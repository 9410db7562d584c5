package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide explains how to copy the session cookie out of a browser
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "FANTIA SESSION COOKIE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "fantiadl reads your content with the session of a logged in browser.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Log in at https://fantia.jp in your browser.")
	fmt.Fprintln(w, "2. Open the developer tools (F12, or Cmd+Option+I on macOS).")
	fmt.Fprintln(w, "3. Chrome/Edge: Application > Cookies > https://fantia.jp")
	fmt.Fprintln(w, "   Firefox:     Storage > Cookies > https://fantia.jp")
	fmt.Fprintln(w, "4. Copy the value of the _session_id cookie.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Alternatively export a Netscape cookies.txt file and pass it with")
	fmt.Fprintln(w, "--cookies.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The session grants full access to your account. Do not share it.")
	fmt.Fprintln(w, rule)
}
