package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// DraftDocument is the strictly-shaped output of the extraction collaborator
// for one scraped page. The schema is validated at the extraction boundary;
// downstream stages never branch on runtime shapes.
type DraftDocument struct {
	BusinessInfo        BusinessInfo        `json:"business_info"`
	Services            Services            `json:"services"`
	Reviews             Reviews             `json:"reviews"`
	CustomerInteraction CustomerInteraction `json:"customer_interaction"`
	Media               Media               `json:"media"`
}

// BusinessInfo holds the identity and contact fields of a draft.
type BusinessInfo struct {
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	Website         string       `json:"website,omitempty"`
	Address         string       `json:"address,omitempty"`
	ServiceAreas    []string     `json:"service_areas,omitempty"`
	YearsInBusiness int          `json:"years_in_business,omitempty"`
	EmployeeCount   int          `json:"employee_count,omitempty"`
	License         DraftLicense `json:"license,omitempty"`
	PaymentMethods  []string     `json:"payment_methods,omitempty"`
	SocialLinks     []string     `json:"social_links,omitempty"`
	Awards          []string     `json:"awards,omitempty"`
}

// DraftLicense is the nested license object inside business_info.
type DraftLicense struct {
	Number   string `json:"number,omitempty"`
	Type     string `json:"type,omitempty"`
	State    string `json:"state,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}

// Services lists what the provider offers.
type Services struct {
	Offered     []string `json:"offered,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
}

// Reviews holds the aggregate rating and individual review items.
type Reviews struct {
	Rating       float64        `json:"rating,omitempty"`
	TotalReviews int            `json:"total_reviews,omitempty"`
	Distribution map[string]int `json:"distribution,omitempty"`
	Items        []Review       `json:"items,omitempty"`
}

// Review is a single customer review.
type Review struct {
	Reviewer string  `json:"reviewer"`
	Date     string  `json:"date"`
	Platform string  `json:"platform"`
	Rating   float64 `json:"rating,omitempty"`
	Text     string  `json:"text,omitempty"`
}

// Key returns the composite de-duplication key for a review.
func (r Review) Key() string {
	return strings.ToLower(r.Reviewer) + "|" + r.Date + "|" + strings.ToLower(r.Platform)
}

// CustomerInteraction holds responsiveness and booking fields.
type CustomerInteraction struct {
	ResponseTime     string `json:"response_time,omitempty"`
	Availability     string `json:"availability,omitempty"`
	BookingURL       string `json:"booking_url,omitempty"`
	EmergencyService bool   `json:"emergency_service,omitempty"`
}

// Media holds photo/video totals and gallery links.
type Media struct {
	PhotoCount   int      `json:"photo_count,omitempty"`
	VideoCount   int      `json:"video_count,omitempty"`
	GalleryLinks []string `json:"gallery_links,omitempty"`
}

// ParseDraft decodes raw extraction output into a DraftDocument, rejecting
// unknown top-level shapes. Malformed output is an explicit error, never
// treated as partial-but-valid.
func ParseDraft(data []byte) (*DraftDocument, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var d DraftDocument
	if err := dec.Decode(&d); err != nil {
		return nil, eris.Wrap(err, "model: decode draft document")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the invariants a usable draft must satisfy.
func (d *DraftDocument) Validate() error {
	if strings.TrimSpace(d.BusinessInfo.Name) == "" {
		return eris.New("model: draft has no business name")
	}
	if d.Reviews.Rating < 0 || d.Reviews.Rating > 5 {
		return eris.Errorf("model: draft rating %.2f out of range", d.Reviews.Rating)
	}
	if d.Reviews.TotalReviews < 0 {
		return eris.Errorf("model: draft total_reviews %d negative", d.Reviews.TotalReviews)
	}
	return nil
}

// AsMap converts the draft to the generic document form the merge engine
// operates on.
func (d *DraftDocument) AsMap() (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal draft")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrap(err, "model: draft to map")
	}
	return m, nil
}
