// Package locator resolves human-readable element descriptions against a DOM snapshot.
package locator

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy names how a match was found
type Strategy string

const (
	StrategyRole Strategy = "role"
	StrategyText Strategy = "text"
)

const (
	// RoleButton is the only role the engine currently queries
	RoleButton = "button"
	// RoleNone skips the role scan and resolves by rendered text only
	RoleNone = ""
)

const buttonCandidates = `button, [role=button], input[type=button], input[type=submit], input[type=reset], input[type=image], summary`

const excludedContainers = "head, script, style, noscript, template"

// Match is a resolved element addressed by a structural CSS path
type Match struct {
	Selector string
	Tag      string
	Name     string
	Strategy Strategy
}

// ParseHTML builds a document from a serialized DOM snapshot
func ParseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOM snapshot: %w", err)
	}
	return doc, nil
}

// Resolve finds the first element with the given role whose accessible name contains text,
// falling back to the first innermost element whose rendered text contains text.
// Matching is case-insensitive. Returns nil when nothing matches or text is blank.
func Resolve(doc *goquery.Document, role, text string) *Match {
	query := strings.ToLower(normalizeSpace(text))
	if doc == nil || query == "" {
		return nil
	}

	if m := byRole(doc, role, query); m != nil {
		return m
	}
	return byText(doc, query)
}

func byRole(doc *goquery.Document, role, query string) *Match {
	if role != RoleButton {
		return nil
	}

	var match *Match
	doc.Find(buttonCandidates).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if excluded(sel) {
			return true
		}
		name := accessibleName(sel)
		if !strings.Contains(strings.ToLower(name), query) {
			return true
		}
		match = newMatch(sel, name, StrategyRole)
		return false
	})
	return match
}

func byText(doc *goquery.Document, query string) *Match {
	var match *Match
	doc.Find("body *").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if excluded(sel) {
			return true
		}
		text := normalizeSpace(sel.Text())
		if !strings.Contains(strings.ToLower(text), query) {
			return true
		}

		// Only the innermost element carrying the text qualifies
		innermost := true
		sel.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
			if excluded(child) {
				return true
			}
			if strings.Contains(strings.ToLower(normalizeSpace(child.Text())), query) {
				innermost = false
				return false
			}
			return true
		})
		if !innermost {
			return true
		}

		match = newMatch(sel, text, StrategyText)
		return false
	})
	return match
}

// accessibleName approximates the computed name: aria-label, text, value, title, alt
func accessibleName(sel *goquery.Selection) string {
	if label, ok := sel.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
		return normalizeSpace(label)
	}
	if text := normalizeSpace(sel.Text()); text != "" {
		return text
	}
	for _, attr := range []string{"value", "title", "alt"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return normalizeSpace(v)
		}
	}
	return ""
}

func newMatch(sel *goquery.Selection, name string, strategy Strategy) *Match {
	return &Match{
		Selector: CSSPath(sel),
		Tag:      goquery.NodeName(sel),
		Name:     name,
		Strategy: strategy,
	}
}

func excluded(sel *goquery.Selection) bool {
	return sel.Closest(excludedContainers).Length() > 0
}

// CSSPath builds a structural selector ("html > body > div:nth-child(2) > button:nth-child(1)")
// that addresses the first element of sel in the same document.
func CSSPath(sel *goquery.Selection) string {
	var parts []string
	for cur := sel.First(); cur.Length() > 0; cur = cur.Parent() {
		tag := goquery.NodeName(cur)
		if cur.Parent().Length() == 0 {
			parts = append(parts, tag)
			break
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", tag, cur.PrevAll().Length()+1))
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
