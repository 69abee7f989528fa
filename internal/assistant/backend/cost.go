package backend

// Pricing is the USD cost per 1M tokens for input and output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// Gemini list prices for text tokens.
var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
}

// ResolvePricing returns the pricing for a model, zero when unknown.
func ResolvePricing(model string) Pricing {
	return defaultPricing[model]
}

// ComputeCost converts token counts to USD.
func ComputeCost(promptTokens, completionTokens int, p Pricing) (input, output, total float64) {
	input = p.InputPerM * float64(promptTokens) / 1_000_000.0
	output = p.OutputPerM * float64(completionTokens) / 1_000_000.0
	return input, output, input + output
}
