package domain

import "fmt"

const bpsDenominator = 10000

// TotalCost prices a booking: the venue's day rate plus every selected
// service that has a full-event price.
func TotalCost(venue Venue, services []Service) int64 {
	total := venue.PricePerDayCents
	for _, s := range services {
		if s.Pricing.FullEventCents > 0 {
			total += s.Pricing.FullEventCents
		}
	}
	return total
}

// ServiceUnitPrice is the invoiced unit price of a service: full-event,
// falling back to hourly.
func ServiceUnitPrice(s Service) int64 {
	if s.Pricing.FullEventCents > 0 {
		return s.Pricing.FullEventCents
	}
	return s.Pricing.HourlyCents
}

// LineItems builds one line for the venue and one per service.
func LineItems(venue *Venue, services []Service) []LineItem {
	items := make([]LineItem, 0, len(services)+1)

	if venue != nil {
		items = append(items, LineItem{
			Description: "Venue: " + venue.Name,
			Quantity:    1,
			UnitCents:   venue.PricePerDayCents,
			TotalCents:  venue.PricePerDayCents,
			Type:        LineVenue,
		})
	}

	for _, s := range services {
		price := ServiceUnitPrice(s)
		items = append(items, LineItem{
			Description: "Service: " + s.Name,
			Quantity:    1,
			UnitCents:   price,
			TotalCents:  price,
			Type:        LineService,
		})
	}

	return items
}

// roundBps returns round(amount * bps / 10000), halves away from zero.
func roundBps(amount int64, bps int) int64 {
	n := amount * int64(bps)
	if n < 0 {
		return -((-n + bpsDenominator/2) / bpsDenominator)
	}
	return (n + bpsDenominator/2) / bpsDenominator
}

// Tax computes tax and gross total for a subtotal at rateBps basis points
// (1800 = 18%). total == round(subtotal * (1 + rate)) == subtotal + tax.
func Tax(subtotal int64, rateBps int) (tax, total int64) {
	tax = roundBps(subtotal, rateBps)
	total = roundBps(subtotal, bpsDenominator+rateBps)
	return tax, total
}

// InvoiceNumber formats a year-scoped invoice number, e.g. INV-2026-0007.
func InvoiceNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%04d", year, seq)
}

// MaskCard keeps only the last four digits of a card number.
func MaskCard(number string) string {
	digits := make([]byte, 0, len(number))
	for i := 0; i < len(number); i++ {
		if number[i] >= '0' && number[i] <= '9' {
			digits = append(digits, number[i])
		}
	}
	if len(digits) <= 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}
