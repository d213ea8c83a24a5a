package content

import (
	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/pagebrew/internal/frontmatter"
)

// Fingerprint computes the content fingerprint of a raw markdown document
// from its front matter and body parts. Documents whose front matter cannot
// be split fingerprint as a body-only document.
func Fingerprint(raw []byte) string {
	fm, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return mdfp.CalculateFingerprintFromParts("", string(raw))
	}
	return mdfp.CalculateFingerprintFromParts(string(fm), string(body))
}
