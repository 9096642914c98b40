package identity

import (
	"context"
	"errors"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

// ErrUserNotFound is returned by a NameLookup that found no account.
var ErrUserNotFound = errors.New("user not found")

// NameLookup resolves a user's first name to their numeric id.
type NameLookup interface {
	LookupUserID(ctx context.Context, name string) (int64, error)
}

// Source says how the identity of a turn was settled.
type Source string

const (
	SourceSticky     Source = "sticky"
	SourceExplicit   Source = "explicit"
	SourceLookup     Source = "lookup"
	SourceUnresolved Source = "unresolved"
)

// Resolution is the outcome of running the policy on one message.
type Resolution struct {
	Claim           Claim
	Source          Source
	LookupAttempted bool
	Changed         bool
	Err             error
}

type Resolver struct {
	lookup NameLookup
}

// NewResolver returns a policy that consults lookup for named introductions.
// A nil lookup disables name resolution.
func NewResolver(lookup NameLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve updates tc in place. It never clears an id and never invents one.
func (r *Resolver) Resolve(ctx context.Context, tc *model.ThreadContext, message string) Resolution {
	claim := Parse(message)
	res := Resolution{Claim: claim, Source: SourceUnresolved}

	if claim.Kind == ClaimExplicitID {
		res.Changed = tc.UserID == nil || *tc.UserID != claim.UserID
		if res.Changed {
			// A name learnt for another account must not address this one.
			tc.UserName = ""
		}
		tc.SetUser(claim.UserID)
		res.Source = SourceExplicit
		return res
	}

	if tc.HasUser() {
		res.Source = SourceSticky
		return res
	}

	if claim.Kind != ClaimNamedIntroduction || r.lookup == nil {
		return res
	}

	res.LookupAttempted = true
	id, err := r.lookup.LookupUserID(ctx, claim.Name)
	if err != nil {
		res.Err = err
		logx.Warn().Err(err).Str("name", claim.Name).Msg("user id lookup by name failed")
		return res
	}
	if id < 0 {
		res.Err = ErrNotUserID
		return res
	}

	tc.SetUser(id)
	tc.UserName = claim.Name
	res.Source = SourceLookup
	res.Changed = true
	logx.Debug().Str("name", claim.Name).Int64("user_id", id).Msg("resolved user id by name")
	return res
}
