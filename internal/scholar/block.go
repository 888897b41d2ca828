package scholar

import "strings"

// BlockKind classifies the anti-bot interstitial found in a response body.
type BlockKind int

// Block kinds ordered by classification precedence.
const (
	// BlockNone means the body shows no block signature.
	BlockNone BlockKind = iota
	// BlockCaptcha is a bare CAPTCHA challenge page.
	BlockCaptcha
	// BlockUnusualTraffic is the "unusual traffic from your computer
	// network" notice.
	BlockUnusualTraffic
	// BlockSorry is the full interstitial that pairs the apology with the
	// unusual traffic notice.
	BlockSorry
	// BlockRateLimited tags HTTP 429 responses for breaker accounting.
	// Classify never returns it.
	BlockRateLimited
)

// String returns a stable label for logs and metric partitions.
func (k BlockKind) String() string {
	switch k {
	case BlockNone:
		return "none"
	case BlockCaptcha:
		return "captcha"
	case BlockUnusualTraffic:
		return "unusual_traffic"
	case BlockSorry:
		return "sorry"
	case BlockRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Blocked reports whether the kind represents an actual block.
func (k BlockKind) Blocked() bool { return k != BlockNone }

// Block page signatures, matched case-insensitively.
const (
	sigSorry    = "we're sorry"
	sigUnusual  = "unusual traffic"
	sigCaptcha  = "captcha"
	sigNotRobot = "not a robot"
)

// Classify inspects a response body for block signatures. The full sorry
// page wins over the plain unusual traffic notice, which wins over a bare
// CAPTCHA challenge. An empty body is not a block.
func Classify(body []byte) BlockKind {
	if len(body) == 0 {
		return BlockNone
	}
	page := strings.ToLower(string(body))
	sorry := strings.Contains(page, sigSorry)
	unusual := strings.Contains(page, sigUnusual)
	switch {
	case sorry && unusual:
		return BlockSorry
	case unusual:
		return BlockUnusualTraffic
	case strings.Contains(page, sigCaptcha) || strings.Contains(page, sigNotRobot):
		return BlockCaptcha
	default:
		return BlockNone
	}
}
