package sales

import "fmt"

// Allocation is the validated outcome of splitting a sale's grand total
// across tenders: zero or more CASH/CARD payment rows plus at most one debt.
type Allocation struct {
	Payments   []Payment
	DebtAmount int64
	Debtor     Debtor
}

// AllocatePayments validates an ordered tender list against the grand total.
// The sum must match exactly; a shortfall is never converted into an implicit
// debt. Multiple DEBT tenders are summed into one obligation.
func AllocatePayments(grandTotal int64, tenders []Tender, debtor *Debtor) (Allocation, error) {
	if len(tenders) == 0 {
		return Allocation{}, fmt.Errorf("%w: no tenders given", ErrInvalidAmount)
	}

	var alloc Allocation
	var sum int64
	for i, t := range tenders {
		if t.Amount <= 0 {
			return Allocation{}, fmt.Errorf("%w: tender %d (%s)", ErrInvalidAmount, i+1, t.Method)
		}
		switch t.Method {
		case MethodCash, MethodCard:
			alloc.Payments = append(alloc.Payments, Payment{Method: t.Method, Amount: t.Amount})
		case MethodDebt:
			alloc.DebtAmount += t.Amount
		default:
			return Allocation{}, fmt.Errorf("%w: %q", ErrUnknownMethod, t.Method)
		}
		sum += t.Amount
	}

	if sum != grandTotal {
		return Allocation{}, &UnbalancedPaymentError{Want: grandTotal, Got: sum}
	}

	if alloc.DebtAmount > 0 {
		if debtor == nil || debtor.Name == "" || debtor.Phone == "" {
			return Allocation{}, ErrDebtorRequired
		}
		alloc.Debtor = *debtor
	}

	return alloc, nil
}
