package formfill

// ChromedpElementHandle re-resolves a live DOM node through a CSS selector
// inside a chromedp execution context. It carries no live reference of its
// own — per §4.9 ("callers ... construct a fresh locator every call") every
// interaction re-queries the page by selector rather than holding a stale
// node.
type ChromedpElementHandle struct {
	selector string
}

// NewChromedpElementHandle wraps a CSS selector.
func NewChromedpElementHandle(selector string) ChromedpElementHandle {
	return ChromedpElementHandle{selector: selector}
}

func (h ChromedpElementHandle) Selector() string { return h.selector }

// StaticElementHandle is the goquery-backed counterpart used by
// fixture-driven unit tests, so C7's heuristics are exercised without a
// browser.
type StaticElementHandle struct {
	selector string
}

// NewStaticElementHandle wraps a CSS selector resolvable against a
// goquery.Document.
func NewStaticElementHandle(selector string) StaticElementHandle {
	return StaticElementHandle{selector: selector}
}

func (h StaticElementHandle) Selector() string { return h.selector }
