/*
catalog.go - Demo product catalog

PURPOSE:
  The product catalog lives outside the cart service. For demos and local
  development the server ships the store's seed products so that a client
  can add items by id alone.

AVAILABLE PRODUCTS:
  1  Pea microgreens        350  50 g
  2  Basil microgreens      450  30 g
  3  Broccoli microgreens   420  50 g
  4  Sunflower microgreens  380  50 g

USAGE VIA API:
  GET  /api/products
  POST /api/cart/items
  {"id": 2}

ADDING NEW PRODUCTS:
  Append to DemoCatalog. Ids must stay unique.

SEE ALSO:
  - handlers.go: ListProducts, AddItem handlers
  - cart/types.go: Candidate
*/
package api

import "github.com/microgreen/storefront/cart"

// Catalog is a fixed list of products a client may add by id.
type Catalog []cart.Candidate

// DemoCatalog returns the seed products.
func DemoCatalog() Catalog {
	return Catalog{
		{ID: 1, Name: "Pea microgreens", UnitPrice: 350, WeightLabel: "50 g", ImageRef: "/images/pea.jpg"},
		{ID: 2, Name: "Basil microgreens", UnitPrice: 450, WeightLabel: "30 g", ImageRef: "/images/basil.jpg"},
		{ID: 3, Name: "Broccoli microgreens", UnitPrice: 420, WeightLabel: "50 g", ImageRef: "/images/broccoli.jpg"},
		{ID: 4, Name: "Sunflower microgreens", UnitPrice: 380, WeightLabel: "50 g", ImageRef: "/images/sunflower.jpg"},
	}
}

// Find returns the product with the given id.
func (c Catalog) Find(id cart.ProductID) (cart.Candidate, bool) {
	for _, p := range c {
		if p.ID == id {
			return p, true
		}
	}
	return cart.Candidate{}, false
}
