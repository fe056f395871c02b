package llm

// price is USD per million tokens.
type price struct {
	input, output float64
}

var prices = map[string]price{
	"gpt-4o-mini":   {0.15, 0.60},
	"gpt-4.1-mini":  {0.40, 1.60},
	"gpt-4o":        {2.50, 10.00},
	"gpt-3.5-turbo": {0.50, 1.50},

	"claude-3-5-haiku-latest":  {0.80, 4.00},
	"claude-3-haiku-20240307":  {0.25, 1.25},
	"claude-sonnet-4-20250514": {3.00, 15.00},
}

// EstimateCost prices usage for model. Unknown and local models cost 0.
func EstimateCost(model string, u Usage) float64 {
	p, ok := prices[model]
	if !ok {
		return 0
	}
	return (float64(u.Input)*p.input + float64(u.Output)*p.output) / 1e6
}
