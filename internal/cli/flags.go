package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// decimalValue lets decimals be passed as flags without float rounding.
type decimalValue struct {
	d *decimal.Decimal
}

var _ pflag.Value = decimalValue{}

func newDecimalValue(d *decimal.Decimal) decimalValue {
	return decimalValue{d: d}
}

func (v decimalValue) String() string {
	if v.d == nil {
		return "0"
	}
	return v.d.String()
}

func (v decimalValue) Set(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid decimal %q", s)
	}
	*v.d = d
	return nil
}

func (v decimalValue) Type() string { return "decimal" }

// decimalVar registers a decimal flag on fs.
func decimalVar(fs *pflag.FlagSet, p *decimal.Decimal, name, usage string) {
	fs.Var(newDecimalValue(p), name, usage)
}
