package browsertest

import (
	"strconv"

	"github.com/kuitang/swaglabs-e2e/internal/browser"
)

// Titles of the scripted screens.
const (
	LoginTitle     = "Swag Labs | Login"
	InventoryTitle = "Swag Labs"
)

var (
	username    = browser.ByID("user-name")
	password    = browser.ByID("password")
	loginButton = browser.ByID("login-button")
	errorBanner = browser.ByCSS(`[data-test="error"]`)
	inventory   = browser.ByID("inventory_container")
	addBackpack = browser.ByID("add-to-cart-sauce-labs-backpack")
	cartBadge   = browser.ByCSS(".shopping_cart_badge")
)

// SwagLabs scripts d as a two-screen storefront: every navigation shows the
// login form, and a click on the login button with a known user/password pair
// sets the session cookie and switches to the inventory screen. Adding the
// backpack increments the cart badge.
func SwagLabs(d *Driver, accounts map[string]string) {
	cart := 0

	showLogin := func(d *Driver) {
		d.Clear()
		d.SetTitle(LoginTitle)
		d.Show(username, "")
		d.Show(password, "")
		d.Show(loginButton, "Login")
	}

	d.OnNavigate(func(d *Driver, _ string) {
		showLogin(d)
	})

	d.OnClick(loginButton, func(d *Driver) {
		user, pass := d.Value(username), d.Value(password)
		want, ok := accounts[user]
		if !ok || want != pass {
			d.Show(errorBanner, "Epic sadface: Username and password do not match any user in this service")
			return
		}
		cart = 0
		d.SetCookie("session-username", user)
		d.Clear()
		d.SetTitle(InventoryTitle)
		d.Show(inventory, "")
		d.Show(addBackpack, "Add to cart")
	})

	d.OnClick(addBackpack, func(d *Driver) {
		cart++
		d.Show(cartBadge, strconv.Itoa(cart))
	})
}
