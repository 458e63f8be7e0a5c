package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
	"github.com/nypl/cancel-request-consumer/internal/processing/batch"
	"github.com/nypl/cancel-request-consumer/internal/processing/classify"
	"github.com/nypl/cancel-request-consumer/internal/processing/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxHoldPages bounds paging through a patron's holds.
const maxHoldPages = 100

// sierraID accepts ids encoded either as JSON numbers or strings.
type sierraID string

func (id *sierraID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = sierraID(s)
		return nil
	}

	var n jsoniter.Number
	if err := json.Unmarshal(b, &n); err != nil || n == "" {
		return fmt.Errorf("invalid sierra id %s", b)
	}
	*id = sierraID(n.String())
	return nil
}

type patronResponse struct {
	ID sierraID `json:"id"`
}

type itemResponse struct {
	Data []struct {
		ID sierraID `json:"id"`
	} `json:"data"`
}

type holdsResponse struct {
	Entries []struct {
		ID     string `json:"id"`
		Record string `json:"record"`
	} `json:"entries"`
}

// lookupStage resolves Sierra ids for the record. Failures are logged and leave
// the ids unset; later stages detect the missing preconditions.
type lookupStage struct {
	client   *api.Client
	baseURL  string
	pageSize int
	tokens   Invalidator
	log      *slog.Logger
}

func (s *lookupStage) Name() string       { return StageLookup }
func (s *lookupStage) Credential() string { return domain.TokenNameSierra }

func (s *lookupStage) Apply(ctx context.Context, rec domain.CancelRequestRecord, token string) batch.Outcome[domain.CancelRequestRecord] {
	if !rec.HasBarcodes() {
		return precondition(s.log, StageLookup, rec, "missing patron or item barcode")
	}

	id, err := s.findPatron(ctx, rec.PatronBarcode, token)
	if err != nil {
		if s.failed(ctx, rec, "Error finding patron from barcode", err) {
			return s.resolved(rec)
		}
	} else {
		rec.PatronID = id
	}

	id, err = s.findItem(ctx, rec.ItemBarcode, token)
	if err != nil {
		if s.failed(ctx, rec, "Error finding item from barcode", err) {
			return s.resolved(rec)
		}
	} else {
		rec.ItemID = id
	}

	if rec.PatronID != "" && rec.ItemID != "" {
		id, err := s.findHold(ctx, rec.PatronID, rec.ItemID, token)
		if err != nil {
			s.failed(ctx, rec, "Error finding hold request", err)
		}
		rec.HoldRequestID = id
	}

	return s.resolved(rec)
}

func (s *lookupStage) resolved(rec domain.CancelRequestRecord) batch.Outcome[domain.CancelRequestRecord] {
	result := "resolved"
	if rec.HoldRequestID == "" {
		result = "unresolved"
	}
	metrics.StageOutcomes.WithLabelValues(StageLookup, result).Inc()

	return batch.Continue(rec)
}

// failed logs a lookup error. When Sierra rejected the token the cached credential
// is dropped so the next batch fetches a fresh one, and failed reports true: the
// remaining lookups would be rejected too.
func (s *lookupStage) failed(ctx context.Context, rec domain.CancelRequestRecord, msg string, err error) bool {
	s.log.Error(msg, "cancel_request_id", rec.ID, "error", err)

	if classify.Classify(err, ServiceSierra, rec.ID).Kind != domain.KindAccessTokenInvalid {
		return false
	}
	if s.tokens != nil {
		if ierr := s.tokens.Invalidate(ctx, s.Credential()); ierr != nil {
			s.log.Error("Failed to invalidate credential", "token_name", s.Credential(), "error", ierr)
		}
	}
	return true
}

func (s *lookupStage) get(ctx context.Context, u, token string, v any) error {
	resp, err := s.client.Do(ctx, api.Request{
		Service: ServiceSierra,
		Method:  http.MethodGet,
		URL:     u,
		Token:   token,
	})
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

func (s *lookupStage) findPatron(ctx context.Context, barcode, token string) (string, error) {
	var out patronResponse
	u := s.baseURL + "patrons/find?varFieldTag=b&varFieldContent=" + url.QueryEscape(barcode)
	if err := s.get(ctx, u, token, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("no patron id for barcode %s", barcode)
	}
	return string(out.ID), nil
}

func (s *lookupStage) findItem(ctx context.Context, barcode, token string) (string, error) {
	var out itemResponse
	u := s.baseURL + "items?barcode=" + url.QueryEscape(barcode)
	if err := s.get(ctx, u, token, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || out.Data[0].ID == "" {
		return "", fmt.Errorf("no item id for barcode %s", barcode)
	}
	return string(out.Data[0].ID), nil
}

// findHold pages through the patron's holds looking for one that references itemID.
// It returns "" when none is found.
func (s *lookupStage) findHold(ctx context.Context, patronID, itemID, token string) (string, error) {
	offset := 0
	for page := 0; page < maxHoldPages; page++ {
		var out holdsResponse
		u := fmt.Sprintf("%spatrons/%s/holds?offset=%d&limit=%d", s.baseURL, url.PathEscape(patronID), offset, s.pageSize)
		if err := s.get(ctx, u, token, &out); err != nil {
			return "", err
		}

		for _, entry := range out.Entries {
			if referencesItem(entry.Record, itemID) {
				return entry.ID, nil
			}
		}

		if len(out.Entries) < s.pageSize {
			return "", nil
		}
		offset += s.pageSize
	}
	return "", fmt.Errorf("no hold found for item %s after %d pages", itemID, maxHoldPages)
}

// referencesItem matches a hold's record link (".../items/<id>") against an item id.
func referencesItem(record, itemID string) bool {
	return record == itemID || strings.HasSuffix(record, "/"+itemID)
}
