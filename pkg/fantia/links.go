package fantia

import "regexp"

var externalLinkRE = regexp.MustCompile(`(?:\s+)?((?:(?:https?://)?(?:(?:www\.)?(?:mega\.nz|mediafire\.com|(?:drive|docs)\.google\.com|youtube.com|dropbox.com)/))\S+)`)

// ExternalLinks finds links to known file hosts in free text
func ExternalLinks(text string) []string {
	var links []string
	for _, m := range externalLinkRE.FindAllStringSubmatch(text, -1) {
		links = append(links, m[1])
	}
	return links
}
