package alert

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cryptoalert/internal/models"
)

// RenderMessage builds the plain-text notification for a fired alert.
func RenderMessage(a models.Alert, s Sample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert triggered: %s\n", displayName(a))
	fmt.Fprintf(&b, "Condition: %s\n", DescribeCondition(a.ConditionType, a.Threshold))
	fmt.Fprintf(&b, "Current price: $%s\n", formatPrice(s.Value))
	if s.PctChange24h != nil {
		fmt.Fprintf(&b, "24h change: %s%%\n", signed(s.PctChange24h.Round(2)))
	}
	if a.Repeat {
		fmt.Fprintf(&b, "Repeats at most every %d min", a.CooldownMinutes)
	} else {
		b.WriteString("This alert will not fire again.")
	}
	return b.String()
}

func DescribeCondition(cond models.ConditionType, threshold decimal.Decimal) string {
	switch cond {
	case models.ConditionAbove:
		return "price at or above $" + formatPrice(threshold)
	case models.ConditionBelow:
		return "price at or below $" + formatPrice(threshold)
	case models.ConditionPctUp:
		return "24h change at or above +" + threshold.String() + "%"
	case models.ConditionPctDown:
		return "24h change at or below -" + threshold.String() + "%"
	default:
		return string(cond) + " " + threshold.String()
	}
}

func displayName(a models.Alert) string {
	symbol := strings.ToUpper(strings.TrimSpace(a.ResourceSymbol))
	name := strings.TrimSpace(a.ResourceName)
	switch {
	case symbol != "" && name != "":
		return name + " (" + symbol + ")"
	case symbol != "":
		return symbol
	case name != "":
		return name
	default:
		return a.ResourceKey
	}
}

// formatPrice keeps sub-dollar prices readable without padding large ones.
func formatPrice(v decimal.Decimal) string {
	if v.Abs().LessThan(decimal.NewFromInt(1)) {
		return v.Round(8).String()
	}
	return v.StringFixed(2)
}

func signed(v decimal.Decimal) string {
	if v.IsPositive() {
		return "+" + v.StringFixed(2)
	}
	return v.StringFixed(2)
}
