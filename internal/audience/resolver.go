// Package audience resolves a campaign's audience type into the set of
// recipients eligible for a new send. Unsubscribed and hard-bounced
// addresses are excluded in the queries themselves.
package audience

import (
	"fmt"

	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
)

type Resolver struct {
	Recipients repository.RecipientRepositoryInterface
}

func NewResolver(recipients repository.RecipientRepositoryInterface) *Resolver {
	return &Resolver{Recipients: recipients}
}

// Resolve returns the eligible recipients for the campaign's audience.
// Profile-scoped audiences require the campaign to carry a profile id;
// site-wide audiences union fans across every profile.
func (r *Resolver) Resolve(c *model.Campaign) ([]model.Recipient, error) {
	switch c.AudienceType {
	case model.AudienceProfileSubscribers:
		if c.ProfileID == nil {
			return nil, fmt.Errorf("audience %q requires a profile campaign", c.AudienceType)
		}
		return r.Recipients.ListSendableByProfile(*c.ProfileID, c.AudienceTags)
	case model.AudienceSiteSubscribers:
		return r.Recipients.ListSendableFans(c.AudienceTags)
	case model.AudienceAllCreators:
		return r.Recipients.ListSendableCreators(false)
	case model.AudienceIncompleteCreators:
		return r.Recipients.ListSendableCreators(true)
	default:
		return nil, fmt.Errorf("unknown audience type: %q", c.AudienceType)
	}
}
