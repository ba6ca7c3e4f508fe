package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/matchbook/pkg/app/core/orderbook"
)

const (
	HelloMessage = "matchbook v0.1 - A limit order matching engine\n" +
		"Type \"help\" to print commands."

	ParsingErrorMessage      = "Error: Parsing error."
	InactiveOrderMessage     = "Error: This order was executed or cancelled."
	InexistentOrderMessage   = "Error: This order does not exist."
	EmptyOrderMessage        = "Error: You cannot create or change an order to trade 0 shares."
	InvalidPriceMessage      = "Error: Invalid price."
	UnknownInstrumentMessage = "Error: Unknown instrument."
	MarketPausedMessage      = "Error: Market is paused."
	NoLiquidityMessage       = "Order not executed due to no liquidity."
	OrderCreatedMessage      = "Order created: %s"
	OrderChangedMessage      = "Order changed. New order: %s"
	OrderCancelledMessage    = "Order cancelled."
	TradeMessage             = "Trade, price: %s, qty: %d"
	ExitMessage              = "Exiting matchbook."
	HelpMessage              = "\n" +
		"Commands:\n" +
		"      limit <buy|sell:str> <price:float> <quantity:int> [instrument]   places a limit order\n" +
		"      market <buy|sell:str> <quantity:int> [instrument]                places a market order\n" +
		"      cancel order <id:int>                                            cancels an order\n" +
		"      change order <id:int> <price:float> <quantity:int>               changes an order\n" +
		"      print book [instrument]                                          prints the book of orders\n" +
		"      help                                                             displays this message\n" +
		"      exit                                                             exits engine\n"
)

// Execute runs one line of the text command interface and returns what to
// print. quit is true after "exit".
func (e *Engine) Execute(line string) (out string, quit bool) {
	out, quit = e.execute(line)
	e.commands.Append(line, out)
	return out, quit
}

func (e *Engine) execute(line string) (string, bool) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return ParsingErrorMessage, false
	}

	switch {
	case args[0] == "limit" && (len(args) == 4 || len(args) == 5):
		return e.execLimit(args[1:]), false

	case args[0] == "market" && (len(args) == 3 || len(args) == 4):
		return e.execMarket(args[1:]), false

	case len(args) == 3 && args[0] == "cancel" && args[1] == "order":
		return e.execCancel(args[2]), false

	case len(args) == 5 && args[0] == "change" && args[1] == "order":
		return e.execChange(args[2], args[3], args[4]), false

	case args[0] == "print" && len(args) >= 2 && len(args) <= 3 && args[1] == "book":
		symbol := ""
		if len(args) == 3 {
			symbol = args[2]
		}
		text, err := e.Render(symbol)
		if err != nil {
			return messageFor(err), false
		}
		return text, false

	case len(args) == 1 && args[0] == "help":
		return HelpMessage, false

	case len(args) == 1 && args[0] == "exit":
		return ExitMessage, true
	}

	return ParsingErrorMessage, false
}

// limit <side> <price> <qty> [instrument]
func (e *Engine) execLimit(args []string) string {
	side, err := orderbook.ParseSide(args[0])
	if err != nil {
		return ParsingErrorMessage
	}
	price, err := parsePrice(args[1])
	if err != nil {
		return ParsingErrorMessage
	}
	qty, err := parseQuantity(args[2])
	if err != nil {
		return ParsingErrorMessage
	}

	res, err := e.PlaceLimit(optional(args, 3), side, qty, price)
	if err != nil {
		return messageFor(err)
	}

	if len(res.Trades) == 0 {
		return fmt.Sprintf(OrderCreatedMessage, res.Order)
	}
	lines := tradeLines(res.Trades)
	if res.Order.Active {
		lines = append(lines, fmt.Sprintf(OrderCreatedMessage, res.Order))
	}
	return strings.Join(lines, "\n")
}

// market <side> <qty> [instrument]
func (e *Engine) execMarket(args []string) string {
	side, err := orderbook.ParseSide(args[0])
	if err != nil {
		return ParsingErrorMessage
	}
	qty, err := parseQuantity(args[1])
	if err != nil {
		return ParsingErrorMessage
	}

	res, err := e.PlaceMarket(optional(args, 2), side, qty)
	if err != nil {
		return messageFor(err)
	}
	if len(res.Trades) == 0 {
		return NoLiquidityMessage
	}
	return strings.Join(tradeLines(res.Trades), "\n")
}

func (e *Engine) execCancel(idArg string) string {
	id, err := parseOrderID(idArg)
	if err != nil {
		return ParsingErrorMessage
	}
	if err := e.Cancel(id); err != nil {
		return messageFor(err)
	}
	return OrderCancelledMessage
}

// change order <id> <price> <qty>
func (e *Engine) execChange(idArg, priceArg, qtyArg string) string {
	id, err := parseOrderID(idArg)
	if err != nil {
		return ParsingErrorMessage
	}
	price, err := parsePrice(priceArg)
	if err != nil {
		return ParsingErrorMessage
	}
	qty, err := parseQuantity(qtyArg)
	if err != nil {
		return ParsingErrorMessage
	}

	res, err := e.Modify(id, qty, price)
	if err != nil {
		return messageFor(err)
	}

	if len(res.Trades) == 0 {
		return fmt.Sprintf(OrderChangedMessage, res.Order)
	}
	lines := tradeLines(res.Trades)
	if res.Order.Active {
		lines = append(lines, fmt.Sprintf(OrderChangedMessage, res.Order))
	}
	return strings.Join(lines, "\n")
}

func tradeLines(trades []orderbook.Trade) []string {
	lines := make([]string, 0, len(trades))
	for _, t := range trades {
		lines = append(lines, fmt.Sprintf(TradeMessage, t.Price.StringFixed(2), t.Qty))
	}
	return lines
}

// messageFor maps an engine error to its user-facing line.
func messageFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return EmptyOrderMessage
	case errors.Is(err, ErrInvalidPrice):
		return InvalidPriceMessage
	case errors.Is(err, ErrUnknownOrder):
		return InexistentOrderMessage
	case errors.Is(err, ErrInactiveOrder):
		return InactiveOrderMessage
	case errors.Is(err, ErrUnknownInstrument):
		return UnknownInstrumentMessage
	case errors.Is(err, ErrMarketPaused):
		return MarketPausedMessage
	default:
		return ParsingErrorMessage
	}
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseOrderID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: order id %q", ErrParse, s)
	}
	return id, nil
}

// parseQuantity accepts any integer. Zero and negatives are rejected later
// as an empty order.
func parseQuantity(s string) (int64, error) {
	q, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: quantity %q", ErrParse, s)
	}
	return q, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q", ErrParse, s)
	}
	return p, nil
}
