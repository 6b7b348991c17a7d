// Package pricing extracts room rates and the room service menu from the
// free-text knowledge base.
package pricing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FallbackRate is quoted when a room type has no parsable price.
const FallbackRate int64 = 150000

var menuLineRegex = regexp.MustCompile(`(?i)- (.*?):\s*([\d,]+)\s*UGX`)

// MenuItem is one orderable dish.
type MenuItem struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Menu is the parsed room service menu in source order.
type Menu []MenuItem

// FallbackMenu is served when the dining text yields no items.
func FallbackMenu() Menu {
	return Menu{
		{Name: "Club Sandwich", Price: 30000},
		{Name: "Tilapia Fish & Chips", Price: 45000},
		{Name: "Fresh Juice", Price: 15000},
	}
}

// RatePerNight finds the first "<roomType> ... 123,000 UGX" on a single line
// of roomInfo.
func RatePerNight(roomType, roomInfo string) int64 {
	roomType = strings.TrimSpace(roomType)
	if roomType == "" {
		return FallbackRate
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(roomType) + `.*?([\d,]+)\s*UGX`)
	if err != nil {
		return FallbackRate
	}
	match := re.FindStringSubmatch(roomInfo)
	if len(match) < 2 {
		return FallbackRate
	}
	amount, err := parseAmount(match[1])
	if err != nil {
		return FallbackRate
	}
	return amount
}

// Nights is the billable night count: whole days rounded up, at least one.
func Nights(start, end time.Time) int {
	days := math.Ceil(end.Sub(start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return int(days)
}

// ParseMenu reads "- Name: 12,345 UGX" lines from diningInfo.
func ParseMenu(diningInfo string) Menu {
	var items Menu
	for _, line := range strings.Split(diningInfo, "\n") {
		match := menuLineRegex.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		price, err := parseAmount(match[2])
		if err != nil {
			continue
		}
		items = append(items, MenuItem{Name: strings.TrimSpace(match[1]), Price: price})
	}
	if len(items) == 0 {
		return FallbackMenu()
	}
	return items
}

// Find returns the item with the exact name.
func (m Menu) Find(name string) (MenuItem, bool) {
	for _, item := range m {
		if item.Name == name {
			return item, true
		}
	}
	return MenuItem{}, false
}

// CartLine is a quantity of one menu item.
type CartLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is the priced result of a cart.
type Order struct {
	Lines   []CartLine
	Summary string
	Total   int64
}

// Empty reports whether nothing was selected.
func (o Order) Empty() bool { return len(o.Lines) == 0 }

// Order prices the cart, skipping lines with no quantity. Names missing from
// the menu are listed but cost nothing.
func (m Menu) Order(cart []CartLine) Order {
	var (
		order Order
		parts []string
	)
	for _, line := range cart {
		if line.Quantity <= 0 {
			continue
		}
		order.Lines = append(order.Lines, line)
		parts = append(parts, fmt.Sprintf("%dx %s", line.Quantity, line.Name))
		if item, ok := m.Find(line.Name); ok {
			order.Total += item.Price * int64(line.Quantity)
		}
	}
	order.Summary = strings.Join(parts, ", ")
	return order
}

// FormatAmount groups digits in thousands: 1500000 -> "1,500,000".
func FormatAmount(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

// Format renders an amount with its currency code, e.g. "UGX 300,000".
func Format(n int64, currency string) string {
	if currency == "" {
		currency = "UGX"
	}
	return currency + " " + FormatAmount(n)
}

func parseAmount(text string) (int64, error) {
	value := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseInt(value, 10, 64)
}
