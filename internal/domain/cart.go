package domain

import "time"

// CartStatus is the lifecycle state of a shopper cart
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusConverted CartStatus = "converted"
)

// CartItem is one product line in a cart
type CartItem struct {
	ProductID string   `json:"productId"`
	Title     string   `json:"title"`
	Quantity  int      `json:"quantity"`
	UnitPrice *float64 `json:"unitPrice,omitempty"`
}

// CartSession is the cart a shopper session builds up through the widget.
// There is at most one per store and session.
type CartSession struct {
	ID             string     `json:"id"`
	StoreID        string     `json:"storeId"`
	SessionID      string     `json:"sessionId"`
	ConversationID string     `json:"conversationId,omitempty"`
	Items          []CartItem `json:"items"`
	ItemsCount     int        `json:"itemsCount"`
	TotalValue     float64    `json:"totalValue"`
	Status         CartStatus `json:"status"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// AddItem adds quantity of product to the cart, merging with an existing line,
// and refreshes the totals. The line price follows the product's minimum price.
func (c *CartSession) AddItem(product Product, quantity int) {
	var unitPrice *float64
	if price, ok := product.MinPrice(); ok {
		unitPrice = &price
	}

	merged := false
	for i := range c.Items {
		if c.Items[i].ProductID == product.ID {
			c.Items[i].Quantity += quantity
			c.Items[i].Title = product.Title
			c.Items[i].UnitPrice = unitPrice
			merged = true
			break
		}
	}
	if !merged {
		c.Items = append(c.Items, CartItem{
			ProductID: product.ID,
			Title:     product.Title,
			Quantity:  quantity,
			UnitPrice: unitPrice,
		})
	}
	c.Recount()
}

// Recount recomputes ItemsCount and TotalValue from the items.
// Items without a known price count towards ItemsCount only.
func (c *CartSession) Recount() {
	c.ItemsCount = 0
	c.TotalValue = 0
	for _, item := range c.Items {
		c.ItemsCount += item.Quantity
		if item.UnitPrice != nil {
			c.TotalValue += *item.UnitPrice * float64(item.Quantity)
		}
	}
}
