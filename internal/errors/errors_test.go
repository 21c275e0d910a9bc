package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type formulaErr struct{}

func (formulaErr) Error() string   { return "unexpected token" }
func (formulaErr) ErrorType() Type { return TypeParse }

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "[INPUT_ERROR] quantity must be at least 1", Input("quantity must be at least 1").Error())

	err := Chain("step 2 (ANODIZE): cost formula failed", formulaErr{})
	assert.Equal(t, "[CHAIN_ERROR] step 2 (ANODIZE): cost formula failed: unexpected token", err.Error())
	assert.Equal(t, formulaErr{}, stderrors.Unwrap(err))
}

func TestIsTypeWalksChain(t *testing.T) {
	inner := Wrap(TypeParse, "bad formula", nil)
	outer := Chain("compose failed", inner)
	wrapped := fmt.Errorf("request: %w", outer)

	assert.True(t, IsType(wrapped, TypeChain))
	assert.True(t, IsType(wrapped, TypeParse))
	assert.False(t, IsType(wrapped, TypePricing))
	assert.False(t, IsType(nil, TypeChain))

	assert.True(t, IsType(fmt.Errorf("x: %w", formulaErr{}), TypeParse))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, TypeChain, TypeOf(fmt.Errorf("wrapped: %w", Chain("x", Wrap(TypeEval, "y", nil)))))
	assert.Equal(t, TypeParse, TypeOf(formulaErr{}))
	assert.Equal(t, TypeInternal, TypeOf(stderrors.New("plain")))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		want Type
	}{
		{Input("x"), TypeInput},
		{Pricing("x"), TypePricing},
		{Pricingf("rate %d", 1), TypePricing},
		{Validation("x", nil), TypeValidation},
		{Config("x", nil), TypeConfig},
		{NotFound("cost model", "default"), TypeNotFound},
		{Internal("x", nil), TypeInternal},
		{Wrapf(TypeEval, nil, "divide by %s", "zero"), TypeEval},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.ErrorType())
	}
	assert.Equal(t, "cost model not found: default", NotFound("cost model", "default").Message)
}

func TestWithContext(t *testing.T) {
	err := Input("bad step").WithContext("step", 3).WithContext("code", "ANODIZE")
	assert.Equal(t, map[string]interface{}{"step": 3, "code": "ANODIZE"}, err.Context)
}
