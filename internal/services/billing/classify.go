package billing

import (
	"errors"

	"invoice-billing-backend/internal/gateway"
	"invoice-billing-backend/internal/models"
)

const msgInsufficientBalance = "account balance did not allow the charge"

// classifyOutcome maps the raw gateway outcome onto the terminal attempt
// status and message. Only a captured charge produces SUCCESSFUL; every
// FAILURE carries a message explaining it.
func classifyOutcome(captured bool, err error) (models.BillingStatus, *string) {
	if err == nil {
		if captured {
			return models.BillingSuccessful, nil
		}
		return models.BillingFailure, strPtr(msgInsufficientBalance)
	}

	var (
		notFound *gateway.CustomerNotFoundError
		mismatch *gateway.CurrencyMismatchError
		network  *gateway.NetworkError
	)
	switch {
	case errors.As(err, &notFound):
		return models.BillingFailure, strPtr(notFound.Error())
	case errors.As(err, &mismatch):
		return models.BillingFailure, strPtr(mismatch.Error())
	case errors.As(err, &network):
		return models.BillingFailure, strPtr(network.Error())
	default:
		return models.BillingFailure, strPtr(err.Error())
	}
}

func strPtr(s string) *string {
	return &s
}
