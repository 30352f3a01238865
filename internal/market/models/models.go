package models

import (
	"time"

	id "market/pkg/domain"
)

// LegalForm is a catalog entry describing a business or legal registration category.
type LegalForm struct {
	ID          id.LegalFormID `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
}

// PaymentDetail is one payout destination of a market user.
type PaymentDetail struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
}

// MarketUser is a registered marketplace participant, owned by exactly one account.
//
// Invariants:
//   - LegalFormID references an existing legal form and never changes
//   - BalanceInCents starts at zero
type MarketUser struct {
	ID              id.MarketUserID
	UserID          id.UserID
	LegalFormID     id.LegalFormID
	BalanceInCents  int64
	IsTermsAccepted bool
	Email           string
	LegalAddress    string
	LegalName       string
	PersonalName    string
	Country         string
	PaymentRegime   string
	PaymentDetails  []PaymentDetail
	CreatedAt       time.Time
}

// NewMarketUser builds the record persisted for a registration: zero balance and
// no payment details, whatever the request carried.
func NewMarketUser(owner id.UserID, form id.LegalFormID, req *RegistrationRequest, now time.Time) *MarketUser {
	return &MarketUser{
		UserID:          owner,
		LegalFormID:     form,
		BalanceInCents:  0,
		IsTermsAccepted: req.IsTermsAccepted,
		Email:           req.Email,
		LegalAddress:    req.LegalAddress,
		LegalName:       req.LegalName,
		PersonalName:    req.PersonalName,
		Country:         req.Country,
		PaymentRegime:   req.PaymentRegime,
		PaymentDetails:  []PaymentDetail{},
		CreatedAt:       now,
	}
}
