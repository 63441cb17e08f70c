package browser

import (
	"regexp"
	"strconv"
)

// By is a locator strategy.
type By string

const (
	ID  By = "id"
	CSS By = "css"
)

// Locator identifies a DOM element by strategy and selector.
type Locator struct {
	By    By
	Value string
}

// ByID locates an element by its id attribute.
func ByID(id string) Locator {
	return Locator{By: ID, Value: id}
}

// ByCSS locates an element by CSS selector.
func ByCSS(selector string) Locator {
	return Locator{By: CSS, Value: selector}
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Selector renders the locator as a CSS selector understood by every backend.
func (l Locator) Selector() string {
	if l.By == ID {
		if plainIdent.MatchString(l.Value) {
			return "#" + l.Value
		}
		return "[id=" + strconv.Quote(l.Value) + "]"
	}
	return l.Value
}

func (l Locator) String() string {
	return string(l.By) + "=" + l.Value
}
