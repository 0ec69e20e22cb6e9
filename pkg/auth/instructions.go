package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowSessionGuide explains how to copy an existing browser session for
// use with --session.
func ShowSessionGuide(w io.Writer, baseURL, cookieName string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "REUSING A BROWSER SESSION")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "1. Log in at %s in your browser.\n", baseURL)
	fmt.Fprintln(w, "2. Open Developer Tools (F12) and go to Application/Storage > Cookies.")
	fmt.Fprintf(w, "3. Copy the value of the %q cookie.\n", cookieName)
	fmt.Fprintln(w, "4. Run: dwarchive --session <value> [--remember]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The cookie grants full access to your account. Do not share it.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
