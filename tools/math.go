package tools

import (
	"context"
	"fmt"
	"math"
)

// NewAdd returns the add(a, b) tool
func NewAdd() *Func {
	return New(Spec{
		Name:        "add",
		Description: "Calculate the sum of two integers.",
		Params: []Param{
			{Name: "a", Type: TypeInteger, Description: "First number"},
			{Name: "b", Type: TypeInteger, Description: "Second number"},
		},
	}, func(_ context.Context, args Args) (any, error) {
		a, b, err := intPair(args)
		if err != nil {
			return nil, err
		}
		sum := a + b
		if (sum > a) != (b > 0) {
			return nil, &ArgError{Param: "b", Reason: fmt.Sprintf("%d + %d overflows int64", a, b)}
		}
		return sum, nil
	})
}

// NewMultiply returns the multiply(a, b) tool
func NewMultiply() *Func {
	return New(Spec{
		Name:        "multiply",
		Description: "Compute the product of two integers.",
		Params: []Param{
			{Name: "a", Type: TypeInteger},
			{Name: "b", Type: TypeInteger},
		},
	}, func(_ context.Context, args Args) (any, error) {
		a, b, err := intPair(args)
		if err != nil {
			return nil, err
		}
		if a == 0 || b == 0 {
			return int64(0), nil
		}
		p := a * b
		if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return nil, &ArgError{Param: "b", Reason: fmt.Sprintf("%d * %d overflows int64", a, b)}
		}
		return p, nil
	})
}

func intPair(args Args) (int64, int64, error) {
	a, err := args.Int("a")
	if err != nil {
		return 0, 0, err
	}
	b, err := args.Int("b")
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
