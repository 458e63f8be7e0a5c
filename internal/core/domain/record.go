package domain

import "strings"

// CancelRequestRecord represents a cancel hold request decoded from the inbound stream
// together with the state accumulated while it moves through the pipeline.
type CancelRequestRecord struct {
	ID                  int    `json:"id"`
	JobID               string `json:"jobId,omitempty"`
	TrackingID          string `json:"trackingId,omitempty"`
	PatronBarcode       string `json:"patronBarcode,omitempty"`
	ItemBarcode         string `json:"itemBarcode,omitempty"`
	OwningInstitutionID string `json:"owningInstitutionId,omitempty"`
	DesiredDateDue      string `json:"desiredDateDue,omitempty"`
	Processed           bool   `json:"processed"`
	CreatedDate         string `json:"createdDate,omitempty"`
	UpdatedDate         string `json:"updatedDate,omitempty"`

	// Resolved by the lookup stage.
	PatronID      string `json:"patronId,omitempty"`
	ItemID        string `json:"itemId,omitempty"`
	HoldRequestID string `json:"holdRequestId,omitempty"`

	CheckoutProcessed bool `json:"checkoutProccessed"`
	CheckinProcessed  bool `json:"checkinProccessed"`
	RecapProcessed    bool `json:"recapProcessed"`
	Deleted           bool `json:"deleted"`
	Success           bool `json:"success"`

	Error *ConsumerError `json:"error,omitempty"`

	CheckoutResponse map[string]any `json:"checkoutApiResponse,omitempty"`
	CheckinResponse  map[string]any `json:"checkinApiResponse,omitempty"`
	CancelResponse   map[string]any `json:"cancelApiResponse,omitempty"`
}

// HasBarcodes reports whether both the patron and item barcodes are present.
func (r CancelRequestRecord) HasBarcodes() bool {
	return strings.TrimSpace(r.PatronBarcode) != "" && strings.TrimSpace(r.ItemBarcode) != ""
}

// Terminal reports whether the record reached the final stage of its profile.
func (r CancelRequestRecord) Terminal() bool {
	return r.Deleted || r.RecapProcessed
}
