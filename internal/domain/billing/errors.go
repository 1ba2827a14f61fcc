package billing

import "errors"

var (
	// ErrInvoiceExists means the appointment already has an invoice.
	ErrInvoiceExists = errors.New("appointment already invoiced")
	// ErrInvoiceNotFound means no invoice exists with the given id.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrNotPayable means the invoice is not in the issued state.
	ErrNotPayable = errors.New("invoice is not payable")
	// ErrNotCompleted means the appointment has not been completed, so
	// there is nothing to bill yet.
	ErrNotCompleted = errors.New("appointment is not completed")
)
