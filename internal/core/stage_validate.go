package core

import "context"

// ValidateStage runs the validator chain over the parsed rows.
type ValidateStage struct {
	chain *ValidatorChain
}

// NewValidateStage uses chain, or the order chain when nil.
func NewValidateStage(chain *ValidatorChain) ValidateStage {
	if chain == nil {
		chain = DefaultValidatorChain(OrderFields)
	}
	return ValidateStage{chain: chain}
}

func (ValidateStage) Name() string { return "validate" }

func (s ValidateStage) Execute(_ context.Context, ic *ImportContext) error {
	if errs := s.chain.Validate(ic.Headers, ic.Rows); len(errs) > 0 {
		ic.Errors = append(ic.Errors, errs...)
		ic.Aborted = true
	}
	return nil
}
