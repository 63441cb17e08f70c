package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kuitang/swaglabs-e2e/internal/browser"
)

// Inventory screen locators.
var (
	InventoryContainer = browser.ByID("inventory_container")
	AddBackpackButton  = browser.ByID("add-to-cart-sauce-labs-backpack")
	CartBadge          = browser.ByCSS(".shopping_cart_badge")
)

// HomePage is the inventory screen shown after a successful login.
type HomePage struct {
	s *Session
}

// NewHomePage binds the inventory screen to s.
func NewHomePage(s *Session) *HomePage {
	return &HomePage{s: s}
}

// Title returns the document title.
func (p *HomePage) Title(ctx context.Context) (string, error) {
	return p.s.Title(ctx)
}

// IsLoaded waits for the inventory container.
func (p *HomePage) IsLoaded(ctx context.Context) error {
	return p.s.WaitPresent(ctx, InventoryContainer)
}

// AddToCart adds the backpack and waits for the cart badge to show.
func (p *HomePage) AddToCart(ctx context.Context) error {
	if err := p.s.Click(ctx, AddBackpackButton); err != nil {
		return err
	}
	return p.s.WaitVisible(ctx, CartBadge)
}

// CartCount returns the number on the cart badge; an absent badge is 0.
func (p *HomePage) CartCount(ctx context.Context) (int, error) {
	n, err := p.s.driver.Count(ctx, CartBadge)
	if err != nil || n == 0 {
		return 0, err
	}
	ctx, cancel := p.s.bounded(ctx)
	defer cancel()
	text, err := p.s.driver.Text(ctx, CartBadge)
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("cart badge %q: %w", text, err)
	}
	return count, nil
}
