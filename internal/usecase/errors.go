package usecase

import "errors"

var (
	// ErrStructuringFailed indicates the model reply did not yield a valid
	// question descriptor. Missing fields are never silently defaulted.
	ErrStructuringFailed = errors.New("model reply did not yield a valid question descriptor")
	// ErrSolvingFailed indicates the answer could not be produced.
	ErrSolvingFailed = errors.New("model reply did not yield an answer payload")
	// ErrBudgetExceeded indicates the chain hit its time or depth budget.
	ErrBudgetExceeded = errors.New("chain budget exceeded")
)
