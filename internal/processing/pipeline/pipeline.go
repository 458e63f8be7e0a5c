// Package pipeline runs cancel request records through the ordered network stages
// of a deployment profile.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
	"github.com/nypl/cancel-request-consumer/internal/processing/batch"
	"github.com/nypl/cancel-request-consumer/internal/processing/classify"
)

// Profile selects the terminal stage of a deployment.
type Profile string

const (
	// ProfileHoldDelete looks up the hold and deletes it in Sierra.
	ProfileHoldDelete Profile = "hold-delete"
	// ProfileRecap marks the request processed in the recap service.
	ProfileRecap Profile = "recap"
)

// Stage names.
const (
	StageLookup   = "lookup"
	StageCheckout = "checkout"
	StageCheckin  = "checkin"
	StageRecap    = "recap"
	StageDelete   = "delete"
)

// Downstream service names used in error kinds.
const (
	ServiceCheckout = "checkout-service"
	ServiceCheckin  = "checkin-service"
	ServiceRecap    = "recap-service"
	ServiceHold     = "hold-request-service"
	ServiceSierra   = "sierra-service"
)

// DefaultHoldPageSize is the page size used when paging through a patron's holds.
const DefaultHoldPageSize = 50

// Config describes which stages run and where they call.
type Config struct {
	Profile Profile
	// Lookup enables the Sierra lookup stage. Always on for ProfileHoldDelete.
	Lookup bool
	// Stages overrides the profile's stage order when set.
	Stages []string

	CheckoutURL  string
	CheckinURL   string
	RecapURL     string
	SierraURL    string
	HoldPageSize int
}

// Invalidator drops a cached credential.
type Invalidator interface {
	Invalidate(ctx context.Context, name string) error
}

// Stage is one step of the per-record pipeline.
type Stage interface {
	Name() string
	// Credential names the token the stage authenticates with.
	Credential() string
	Apply(ctx context.Context, rec domain.CancelRequestRecord, token string) batch.Outcome[domain.CancelRequestRecord]
}

// Pipeline runs every record of a batch through each stage in turn.
type Pipeline struct {
	stages []Stage
	tokens Invalidator
	log    *slog.Logger
}

// New builds the pipeline for cfg and checks that every stage's precondition is
// produced by an earlier stage.
func New(client *api.Client, cfg Config, tokens Invalidator) (*Pipeline, error) {
	names, err := stageNames(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.HoldPageSize <= 0 {
		cfg.HoldPageSize = DefaultHoldPageSize
	}

	log := slog.Default()
	stages := make([]Stage, 0, len(names))
	provided := map[flag]bool{}

	for _, name := range names {
		s, spec, err := newStage(name, client, cfg, tokens, log)
		if err != nil {
			return nil, err
		}
		for _, req := range spec.requires {
			if !provided[req] {
				return nil, domain.NewConsumerError(domain.KindFunctionParameter,
					"stage %s requires %s from an earlier stage", name, req)
			}
		}
		provided[spec.provides] = true
		stages = append(stages, s)
	}

	return &Pipeline{stages: stages, tokens: tokens, log: log}, nil
}

func stageNames(cfg Config) ([]string, error) {
	if len(cfg.Stages) > 0 {
		return cfg.Stages, nil
	}

	switch cfg.Profile {
	case ProfileHoldDelete:
		return []string{StageLookup, StageCheckout, StageCheckin, StageDelete}, nil
	case ProfileRecap, "":
		names := []string{StageCheckout, StageCheckin, StageRecap}
		if cfg.Lookup {
			names = append([]string{StageLookup}, names...)
		}
		return names, nil
	default:
		return nil, domain.NewConsumerError(domain.KindFunctionParameter, "unknown pipeline profile %q", cfg.Profile)
	}
}

// flag is a record property a stage relies on or produces.
type flag string

const (
	flagHoldRequest flag = "holdRequestId"
	flagCheckout    flag = "checkoutProccessed"
	flagCheckin     flag = "checkinProccessed"
	flagRecap       flag = "recapProcessed"
	flagDeleted     flag = "deleted"
)

type stageSpec struct {
	requires []flag
	provides flag
}

func newStage(name string, client *api.Client, cfg Config, tokens Invalidator, log *slog.Logger) (Stage, stageSpec, error) {
	switch name {
	case StageLookup:
		if cfg.SierraURL == "" {
			return nil, stageSpec{}, missingURL(name)
		}
		return &lookupStage{client: client, baseURL: withSlash(cfg.SierraURL), pageSize: cfg.HoldPageSize, tokens: tokens, log: log},
			stageSpec{provides: flagHoldRequest}, nil
	case StageCheckout:
		if cfg.CheckoutURL == "" {
			return nil, stageSpec{}, missingURL(name)
		}
		return &checkoutStage{client: client, url: cfg.CheckoutURL, log: log},
			stageSpec{provides: flagCheckout}, nil
	case StageCheckin:
		if cfg.CheckinURL == "" {
			return nil, stageSpec{}, missingURL(name)
		}
		return &checkinStage{client: client, url: cfg.CheckinURL, log: log},
			stageSpec{requires: []flag{flagCheckout}, provides: flagCheckin}, nil
	case StageRecap:
		if cfg.RecapURL == "" {
			return nil, stageSpec{}, missingURL(name)
		}
		return &recapStage{client: client, url: strings.TrimSuffix(cfg.RecapURL, "/"), log: log},
			stageSpec{requires: []flag{flagCheckout, flagCheckin}, provides: flagRecap}, nil
	case StageDelete:
		if cfg.SierraURL == "" {
			return nil, stageSpec{}, missingURL(name)
		}
		return &deleteStage{client: client, baseURL: withSlash(cfg.SierraURL), log: log},
			stageSpec{requires: []flag{flagHoldRequest}, provides: flagDeleted}, nil
	default:
		return nil, stageSpec{}, domain.NewConsumerError(domain.KindFunctionParameter, "unknown stage %q", name)
	}
}

func missingURL(stage string) error {
	return domain.NewConsumerError(domain.KindFunctionParameter, "the %s stage has no service url configured", stage)
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Credentials returns the credential names the pipeline needs.
func (p *Pipeline) Credentials() []string {
	seen := map[string]bool{}
	var names []string
	for _, s := range p.stages {
		if name := s.Credential(); !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Process runs records through every stage. Each stage completes over the whole
// batch before the next one starts. A batch-fatal error stops processing; when it
// is caused by a rejected token, that token is invalidated first.
func (p *Pipeline) Process(
	ctx context.Context,
	records []domain.CancelRequestRecord,
	tokens map[string]string,
) ([]domain.CancelRequestRecord, error) {
	for _, s := range p.stages {
		token := tokens[s.Credential()]
		if token == "" {
			return nil, domain.NewConsumerError(domain.KindFunctionParameter,
				"no %s credential available for the %s stage", s.Credential(), s.Name())
		}

		p.log.Debug("Running stage", "stage", s.Name(), "records", len(records))

		var err error
		records, err = batch.Run(ctx, records, func(ctx context.Context, rec domain.CancelRequestRecord) batch.Outcome[domain.CancelRequestRecord] {
			return s.Apply(ctx, rec, token)
		})
		if err != nil {
			if classify.DecideBatch(err) == classify.ActionRedeliverInvalidateToken && p.tokens != nil {
				if ierr := p.tokens.Invalidate(ctx, s.Credential()); ierr != nil {
					p.log.Error("Failed to invalidate credential", "token_name", s.Credential(), "error", ierr)
				}
			}
			return nil, fmt.Errorf("%s stage: %w", s.Name(), err)
		}
	}
	return records, nil
}

func withSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
