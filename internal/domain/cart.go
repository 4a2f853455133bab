package domain

import "github.com/shopspring/decimal"

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 999

// CartLine is one product in a cart. Quantity is between 1 and MaxLineQuantity.
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is the cart state captured at checkout time.
type CartSnapshot struct {
	Lines    []CartLine
	Revision uint64
}

func (s CartSnapshot) Subtotal() decimal.Decimal {
	return SumLines(s.Lines)
}

func SumLines(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// CloneLines returns a copy that shares no backing array with lines.
func CloneLines(lines []CartLine) []CartLine {
	if lines == nil {
		return nil
	}
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
