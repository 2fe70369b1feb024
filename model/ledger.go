package model

import "time"

// FlightStatusCode is the delay classification the external status authority
// reports for a flight. Zero means no report has been recorded yet; the other
// codes follow the airline reporting convention of multiples of ten.
type FlightStatusCode int32

const (
	StatusUnknown       FlightStatusCode = 0  // No status reported yet
	StatusOnTime        FlightStatusCode = 10 // Flight arrived on time
	StatusLateAirline   FlightStatusCode = 20 // Delay attributed to the airline (triggers settlement)
	StatusLateWeather   FlightStatusCode = 30 // Delay due to weather
	StatusLateTechnical FlightStatusCode = 40 // Delay due to technical issues
	StatusLateOther     FlightStatusCode = 50 // Delay, other cause
)

// PolicyState defines the lifecycle states of an insurance policy.
type PolicyState string

const (
	PolicyActive  PolicyState = "ACTIVE"  // Policy purchased, never settled
	PolicySettled PolicyState = "SETTLED" // Policy credited to its purchaser, terminal
)

// All monetary amounts in stored records are int64 minor units (hundredths of
// a currency unit). Operation boundaries exchange decimal strings.

// Airline is a participating carrier, keyed by its wallet identifier.
type Airline struct {
	ObjectType       string    `json:"objectType"` // "Airline"
	WalletID         string    `json:"walletId"`
	Name             string    `json:"name"`
	IsRegistered     bool      `json:"isRegistered"`
	ContributedFunds int64     `json:"contributedFunds"` // Only ever incremented
	RegisteredBy     string    `json:"registeredBy"`     // Full ID of the controller that registered it
	RegisteredAt     time.Time `json:"registeredAt"`
}

// FlightIdentity is the natural identity triple a flight key is derived from.
// Policies snapshot it at purchase time so settlement matching is stable even
// if the flight record itself is ever altered.
type FlightIdentity struct {
	AirlineID string `json:"airlineId"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"` // Scheduled departure, unix seconds
}

// Flight is a registered flight record. Its ledger key is the hex digest of
// the identity triple, always recomputed and never stored inside the record
// as a second source of truth.
type Flight struct {
	ObjectType   string           `json:"objectType"` // "Flight"
	Name         string           `json:"name"`
	AirlineID    string           `json:"airlineId"`
	IsRegistered bool             `json:"isRegistered"`
	StatusCode   FlightStatusCode `json:"statusCode"`
	Timestamp    int64            `json:"timestamp"`
	RegisteredAt time.Time        `json:"registeredAt"`
}

// InsurancePolicy is one purchased policy in the append-only sequence.
type InsurancePolicy struct {
	ObjectType  string         `json:"objectType"` // "Policy"
	Index       int64          `json:"index"`
	Flight      FlightIdentity `json:"flight"` // Snapshot taken at purchase
	PurchaserID string         `json:"purchaserId"`
	Value       int64          `json:"value"` // Capped at the configured max premium; zeroed on settlement
	State       PolicyState    `json:"state"`
	PurchasedAt time.Time      `json:"purchasedAt"`
	SettledAt   *time.Time     `json:"settledAt"`
}

// PayoutBalance is the owed amount accumulated for one insuree.
type PayoutBalance struct {
	ObjectType string `json:"objectType"` // "Payout"
	InsureeID  string `json:"insureeId"`
	Owed       int64  `json:"owed"`
}

// LedgerConfig is the singleton configuration record written at
// initialisation. Owner is fixed for the life of the ledger.
type LedgerConfig struct {
	ObjectType        string    `json:"objectType"` // "Config"
	Owner             string    `json:"owner"`      // Full ID of the administrator
	Operational       bool      `json:"operational"`
	MaxPremium        int64     `json:"maxPremium"`        // Per-policy premium cap, minor units
	MinAirlineFunding int64     `json:"minAirlineFunding"` // Participation threshold, minor units
	CreatedAt         time.Time `json:"createdAt"`
}

// LedgerSettings is the external view of LedgerConfig with decimal-string
// amounts.
type LedgerSettings struct {
	Owner             string `json:"owner"`
	Operational       bool   `json:"operational"`
	MaxPremium        string `json:"maxPremium"`
	MinAirlineFunding string `json:"minAirlineFunding"`
}

// FlightManifest lists registered flights as parallel sequences in
// registration order.
type FlightManifest struct {
	Keys        []string           `json:"keys"`
	Names       []string           `json:"names"`
	Airlines    []string           `json:"airlines"`
	Timestamps  []int64            `json:"timestamps"`
	StatusCodes []FlightStatusCode `json:"statusCodes"`
}

// SolvencyReport exposes the global monetary counters so external auditors can
// verify that promised payouts never exceed funds on hand.
type SolvencyReport struct {
	FundsReceived  string `json:"fundsReceived"`
	FundsWithdrawn string `json:"fundsWithdrawn"`
	TotalOwed      string `json:"totalOwed"`
	Solvent        bool   `json:"solvent"`
}
