package models

import (
	"strings"

	"github.com/asaskevich/govalidator"

	id "market/pkg/domain"
	dErrors "market/pkg/domain-errors"
)

// RegistrationRequest is the registration payload. The flat shape is canonical;
// the nested legal/payment shape is still accepted and folded in by Normalize.
type RegistrationRequest struct {
	LegalForm       id.LegalFormID  `json:"legalForm"`
	IsTermsAccepted bool            `json:"isTermsAccepted"`
	Email           string          `json:"email"`
	LegalAddress    string          `json:"legalAddress"`
	LegalName       string          `json:"legalName"`
	PersonalName    string          `json:"personalName"`
	Country         string          `json:"country,omitempty"`
	PaymentRegime   string          `json:"paymentRegime,omitempty"`
	PaymentDetails  []PaymentDetail `json:"paymentDetails,omitempty"`

	// Deprecated: send the flat fields instead.
	Legal *LegalSection `json:"legal,omitempty"`
	// Deprecated: send the flat fields instead.
	Payment *PaymentSection `json:"payment,omitempty"`
}

type LegalSection struct {
	LegalForm    id.LegalFormID `json:"legalForm"`
	Email        string         `json:"email"`
	LegalAddress string         `json:"legalAddress"`
	LegalName    string         `json:"legalName"`
	PersonalName string         `json:"personalName"`
	Country      string         `json:"country,omitempty"`
}

type PaymentSection struct {
	PaymentRegime  string          `json:"paymentRegime"`
	PaymentDetails []PaymentDetail `json:"paymentDetails,omitempty"`
}

// Nested reports whether the request used the deprecated nested shape.
func (r *RegistrationRequest) Nested() bool {
	return r != nil && (r.Legal != nil || r.Payment != nil)
}

// Normalize folds the nested sections into the flat fields, where a flat value
// already set wins, and trims whitespace.
func (r *RegistrationRequest) Normalize() {
	if r == nil {
		return
	}
	if l := r.Legal; l != nil {
		if r.LegalForm == 0 {
			r.LegalForm = l.LegalForm
		}
		r.Email = firstNonEmpty(r.Email, l.Email)
		r.LegalAddress = firstNonEmpty(r.LegalAddress, l.LegalAddress)
		r.LegalName = firstNonEmpty(r.LegalName, l.LegalName)
		r.PersonalName = firstNonEmpty(r.PersonalName, l.PersonalName)
		r.Country = firstNonEmpty(r.Country, l.Country)
		r.Legal = nil
	}
	if p := r.Payment; p != nil {
		r.PaymentRegime = firstNonEmpty(r.PaymentRegime, p.PaymentRegime)
		if len(r.PaymentDetails) == 0 {
			r.PaymentDetails = p.PaymentDetails
		}
		r.Payment = nil
	}

	r.Email = strings.TrimSpace(r.Email)
	r.LegalAddress = strings.TrimSpace(r.LegalAddress)
	r.LegalName = strings.TrimSpace(r.LegalName)
	r.PersonalName = strings.TrimSpace(r.PersonalName)
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))
	r.PaymentRegime = strings.TrimSpace(r.PaymentRegime)
}

// Validate checks the payload shape. Whether the legal form exists is checked
// against the catalog by the service.
func (r *RegistrationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if r.Email != "" && (!govalidator.StringLength(r.Email, "3", "255") || !govalidator.IsEmail(r.Email)) {
		return dErrors.New(dErrors.CodeValidation, "email must be a valid email address")
	}
	for _, field := range []struct{ name, value string }{
		{"legalAddress", r.LegalAddress},
		{"legalName", r.LegalName},
		{"personalName", r.PersonalName},
		{"paymentRegime", r.PaymentRegime},
	} {
		if !govalidator.StringLength(field.value, "0", "500") {
			return dErrors.New(dErrors.CodeValidation, field.name+" must be 500 characters or less")
		}
	}
	if r.Country != "" && !govalidator.IsISO3166Alpha2(r.Country) {
		return dErrors.New(dErrors.CodeValidation, "country must be an ISO 3166-1 alpha-2 code")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// RegistrationResponse echoes the accepted payload together with the assigned id.
type RegistrationResponse struct {
	ID              id.MarketUserID `json:"id"`
	LegalForm       id.LegalFormID  `json:"legalForm"`
	IsTermsAccepted bool            `json:"isTermsAccepted"`
	Email           string          `json:"email"`
	LegalAddress    string          `json:"legalAddress"`
	LegalName       string          `json:"legalName"`
	PersonalName    string          `json:"personalName"`
	Country         string          `json:"country,omitempty"`
	PaymentRegime   string          `json:"paymentRegime,omitempty"`
	PaymentDetails  []PaymentDetail `json:"paymentDetails,omitempty"`
}

func NewRegistrationResponse(req *RegistrationRequest, marketUserID id.MarketUserID) *RegistrationResponse {
	return &RegistrationResponse{
		ID:              marketUserID,
		LegalForm:       req.LegalForm,
		IsTermsAccepted: req.IsTermsAccepted,
		Email:           req.Email,
		LegalAddress:    req.LegalAddress,
		LegalName:       req.LegalName,
		PersonalName:    req.PersonalName,
		Country:         req.Country,
		PaymentRegime:   req.PaymentRegime,
		PaymentDetails:  req.PaymentDetails,
	}
}

// MarketUserResponse is the stored view of a market user returned to its owner.
type MarketUserResponse struct {
	ID              id.MarketUserID `json:"id"`
	LegalForm       id.LegalFormID  `json:"legalForm"`
	BalanceInCents  int64           `json:"balanceInCents"`
	IsTermsAccepted bool            `json:"isTermsAccepted"`
	Email           string          `json:"email"`
	LegalAddress    string          `json:"legalAddress"`
	LegalName       string          `json:"legalName"`
	PersonalName    string          `json:"personalName"`
	Country         string          `json:"country,omitempty"`
	PaymentRegime   string          `json:"paymentRegime,omitempty"`
	PaymentDetails  []PaymentDetail `json:"paymentDetails"`
}

func ToMarketUserResponse(m *MarketUser) MarketUserResponse {
	details := m.PaymentDetails
	if details == nil {
		details = []PaymentDetail{}
	}
	return MarketUserResponse{
		ID:              m.ID,
		LegalForm:       m.LegalFormID,
		BalanceInCents:  m.BalanceInCents,
		IsTermsAccepted: m.IsTermsAccepted,
		Email:           m.Email,
		LegalAddress:    m.LegalAddress,
		LegalName:       m.LegalName,
		PersonalName:    m.PersonalName,
		Country:         m.Country,
		PaymentRegime:   m.PaymentRegime,
		PaymentDetails:  details,
	}
}
