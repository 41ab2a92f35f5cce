package query

import "fmt"

// TextOp is an operator applicable to text fields.
type TextOp string

// Text operators, keyed by their wire symbol.
const (
	TextEQ      TextOp = "="
	TextNEQ     TextOp = "!"
	TextStart   TextOp = "^"
	TextEnd     TextOp = "$"
	TextContain TextOp = "%"
)

// ParseTextOp maps a wire symbol to a TextOp.
func ParseTextOp(symbol string) (TextOp, error) {
	switch op := TextOp(symbol); op {
	case TextEQ, TextNEQ, TextStart, TextEnd, TextContain:
		return op, nil
	}
	return "", fmt.Errorf("unknown text operator %q", symbol)
}

// OrderOp is a comparison operator applicable to ordered fields.
type OrderOp string

// Ordered operators, keyed by their wire symbol.
const (
	OrderEQ  OrderOp = "="
	OrderNEQ OrderOp = "!"
	OrderGT  OrderOp = ">"
	OrderGTE OrderOp = ">="
	OrderLT  OrderOp = "<"
	OrderLTE OrderOp = "<="
)

// ParseOrderOp maps a wire symbol to an OrderOp.
func ParseOrderOp(symbol string) (OrderOp, error) {
	switch op := OrderOp(symbol); op {
	case OrderEQ, OrderNEQ, OrderGT, OrderGTE, OrderLT, OrderLTE:
		return op, nil
	}
	return "", fmt.Errorf("unknown comparison operator %q", symbol)
}

func textSymbols() []string {
	return []string{string(TextEQ), string(TextNEQ), string(TextStart), string(TextEnd), string(TextContain)}
}

func orderSymbols() []string {
	return []string{string(OrderEQ), string(OrderNEQ), string(OrderGT), string(OrderGTE), string(OrderLT), string(OrderLTE)}
}
