package oms

import "errors"

var (
	ErrOrderIDNotFound = errors.New("orderID not found")

	errInvalidOrderStatus = errors.New("invalid order status")
	errNoExecutionPrice   = errors.New("no execution price")
	errBelowDispatched    = errors.New("quantity below already dispatched quantity")
	errInvalidModify      = errors.New("modify quantity and price must be positive")
)
