package claim

import "time"

// Kind distinguishes the two claim-event namespaces. Ids are assigned from an
// independent monotonic counter per kind.
type Kind string

const (
	KindSingle Kind = "single"
	KindPool   Kind = "pool"
)

// Event is a registered claim campaign. Pool events carry the full item list
// fixed at creation; single events hold exactly one item id. Events are never
// deleted; disabling is one-way.
type Event struct {
	ID        int64
	Kind      Kind
	Active    bool
	Custodian string
	ItemIDs   []int64
	CreatedBy string
	CreatedAt time.Time
}

// Entitlement is the number of units a claimant may still withdraw from an
// event. Absent rows read as zero.
type Entitlement struct {
	Kind      Kind
	EventID   int64
	Claimant  string
	Remaining uint64
	UpdatedAt time.Time
}

// ClaimResult reports a single claim invocation.
type ClaimResult struct {
	Kind       Kind
	EventID    int64
	Claimant   string
	ItemIDs    []int64
	Amounts    []uint64
	Total      uint64
	Remaining  uint64
	ExecutedAt time.Time
}

const (
	// OutboxTopicEventCreated is published when a claim event is registered.
	OutboxTopicEventCreated = "claim_event.created"
	// OutboxTopicEntitlementUpdated is published with the summed amount of a
	// set or batch-set call.
	OutboxTopicEntitlementUpdated = "entitlement.updated"
	// OutboxTopicClaimExecuted is published with the units actually moved.
	OutboxTopicClaimExecuted = "claim.executed"
)
