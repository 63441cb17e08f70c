package storefront

import (
	"html/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// Product is one inventory item. Description is Markdown.
type Product struct {
	Slug        string
	Name        string
	Description string
	Price       float64
}

// Catalog is the fixed inventory, in display order.
var Catalog = []Product{
	{
		Slug:        "sauce-labs-backpack",
		Name:        "Sauce Labs Backpack",
		Description: "Carry all the things with the **sleek, streamlined** Sly Pack that melds uncompromising style with unequaled laptop and tablet protection.",
		Price:       29.99,
	},
	{
		Slug:        "sauce-labs-bike-light",
		Name:        "Sauce Labs Bike Light",
		Description: "A red light isn't the desired state in testing but it sure helps when riding your bike at night. Water-resistant with *3 lighting modes*, 1 AAA battery included.",
		Price:       9.99,
	},
	{
		Slug:        "sauce-labs-bolt-t-shirt",
		Name:        "Sauce Labs Bolt T-Shirt",
		Description: "Get your testing superhero on with the Sauce Labs bolt T-shirt. From American Apparel, **100% ringspun combed cotton**, heather gray with red bolt.",
		Price:       15.99,
	},
	{
		Slug:        "sauce-labs-fleece-jacket",
		Name:        "Sauce Labs Fleece Jacket",
		Description: "It's not every day that you come across a midweight quarter-zip fleece jacket capable of handling everything from a relaxing day outdoors to a busy day at the office.",
		Price:       49.99,
	},
	{
		Slug:        "sauce-labs-onesie",
		Name:        "Sauce Labs Onesie",
		Description: "Rib snap infant onesie for the junior automation engineer in development. *Reinforced 3-snap bottom closure*, two-needle hemmed sleeved and bottom won't unravel.",
		Price:       7.99,
	},
	{
		Slug:        "test.allthethings()-t-shirt-(red)",
		Name:        "Test.allTheThings() T-Shirt (Red)",
		Description: "This classic Sauce Labs t-shirt is perfect to wear when cozying up to your keyboard to automate a few tests. Super-soft and comfy ringspun combed cotton.",
		Price:       15.99,
	},
}

// renderMarkdown converts a product description to sanitized HTML.
func renderMarkdown(s string) template.HTML {
	extensions := parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(s))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	})
	htmlContent := markdown.Render(doc, renderer)

	policy := bluemonday.UGCPolicy()
	return template.HTML(policy.SanitizeBytes(htmlContent))
}

func findProduct(slug string) (Product, bool) {
	for _, p := range Catalog {
		if p.Slug == slug {
			return p, true
		}
	}
	return Product{}, false
}
