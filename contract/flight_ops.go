package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Flight Registry Operations ---

// deriveFlightKey hashes the flight's natural identity triple into its key.
// Fields are length-prefixed so the encoding is unambiguous: two distinct
// triples can never produce the same digest input.
func deriveFlightKey(airlineID, name string, timestamp int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%s|%d:%s|%d", len(airlineID), airlineID, len(name), name, timestamp)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *FlightSuretyContract) createFlightKey(ctx contractapi.TransactionContextInterface, derivedKey string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(flightObjectType, []string{derivedKey})
}

func (s *FlightSuretyContract) getFlightByDerivedKey(ctx contractapi.TransactionContextInterface, derivedKey string) (*model.Flight, error) {
	flightKey, err := s.createFlightKey(ctx, derivedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create flight state key for '%s': %w", derivedKey, err)
	}
	flightBytes, err := ctx.GetStub().GetState(flightKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving flight '%s': %w", derivedKey, err)
	}
	if flightBytes == nil {
		return nil, nil
	}
	var flight model.Flight
	if err := json.Unmarshal(flightBytes, &flight); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flight '%s': %w", derivedKey, err)
	}
	return &flight, nil
}

func (s *FlightSuretyContract) putFlight(ctx contractapi.TransactionContextInterface, derivedKey string, flight *model.Flight) error {
	flightKey, err := s.createFlightKey(ctx, derivedKey)
	if err != nil {
		return fmt.Errorf("failed to create flight state key for '%s': %w", derivedKey, err)
	}
	flightBytes, err := json.Marshal(flight)
	if err != nil {
		return fmt.Errorf("failed to marshal flight '%s': %w", derivedKey, err)
	}
	if err := ctx.GetStub().PutState(flightKey, flightBytes); err != nil {
		return fmt.Errorf("failed to save flight '%s': %w", derivedKey, err)
	}
	return nil
}

func (s *FlightSuretyContract) validateFlightIdentityArgs(name string, timestamp int64, airlineID string) error {
	if err := s.validateRequiredString(name, "name", maxStringInputLength); err != nil {
		return err
	}
	if err := s.validateTimestamp(timestamp, "timestamp"); err != nil {
		return err
	}
	return s.validateRequiredString(airlineID, "airlineID", maxStringInputLength)
}

// DeriveFlightKey exposes the deterministic key derivation as a pure read.
func (s *FlightSuretyContract) DeriveFlightKey(ctx contractapi.TransactionContextInterface, airlineID, name string, timestamp int64) (string, error) {
	logger.Debugf("Chaincode Call: DeriveFlightKey for '%s'/'%s'/%d", airlineID, name, timestamp)
	if err := s.validateFlightIdentityArgs(name, timestamp, airlineID); err != nil {
		return "", err
	}
	return deriveFlightKey(airlineID, name, timestamp), nil
}

// RegisterFlight inserts a flight with an unknown status and appends its key
// to the registration-order index used by ListFlights.
func (s *FlightSuretyContract) RegisterFlight(ctx contractapi.TransactionContextInterface, name string, timestamp int64, airlineID string) error {
	if err := s.requireControllerAndOperational(ctx); err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}
	if err := s.validateFlightIdentityArgs(name, timestamp, airlineID); err != nil {
		return err
	}
	logger.Infof("Controller '%s' registering flight '%s' for airline '%s' at %d", MustGetCallerFullID(ctx), name, airlineID, timestamp)

	derivedKey := deriveFlightKey(airlineID, name, timestamp)
	existing, err := s.getFlightByDerivedKey(ctx, derivedKey)
	if err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("flight with key '%s': %w", derivedKey, ErrAlreadyRegistered)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}

	flight := model.Flight{
		ObjectType:   flightObjectType,
		Name:         name,
		AirlineID:    airlineID,
		IsRegistered: true,
		StatusCode:   model.StatusUnknown,
		Timestamp:    timestamp,
		RegisteredAt: now,
	}
	if err := s.putFlight(ctx, derivedKey, &flight); err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}

	seq, err := s.readCounter(ctx, counterFlights)
	if err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}
	seqKey, err := ctx.GetStub().CreateCompositeKey(flightSeqObjectType, []string{seqAttribute(seq)})
	if err != nil {
		return fmt.Errorf("RegisterFlight: failed to create flight index key: %w", err)
	}
	if err := ctx.GetStub().PutState(seqKey, []byte(derivedKey)); err != nil {
		return fmt.Errorf("RegisterFlight: failed to save flight index entry: %w", err)
	}
	if err := s.writeCounter(ctx, counterFlights, seq+1); err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}

	if err := s.emitEvent(ctx, "FlightRegistered", map[string]interface{}{
		"key":       derivedKey,
		"name":      name,
		"airlineId": airlineID,
		"timestamp": timestamp,
	}); err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}
	logger.Infof("Flight '%s' registered with key '%s'", name, derivedKey)
	return nil
}

// IsFlightRegistered reports whether the identity triple maps to a registered
// flight.
func (s *FlightSuretyContract) IsFlightRegistered(ctx contractapi.TransactionContextInterface, name string, timestamp int64, airlineID string) (bool, error) {
	logger.Debugf("Chaincode Call: IsFlightRegistered for '%s'/'%s'/%d", airlineID, name, timestamp)
	if err := s.validateFlightIdentityArgs(name, timestamp, airlineID); err != nil {
		return false, err
	}
	flight, err := s.getFlightByDerivedKey(ctx, deriveFlightKey(airlineID, name, timestamp))
	if err != nil {
		return false, err
	}
	return flight != nil && flight.IsRegistered, nil
}

// GetFlight returns the full flight record for the identity triple.
func (s *FlightSuretyContract) GetFlight(ctx contractapi.TransactionContextInterface, name string, timestamp int64, airlineID string) (*model.Flight, error) {
	logger.Debugf("Chaincode Call: GetFlight for '%s'/'%s'/%d", airlineID, name, timestamp)
	if err := s.validateFlightIdentityArgs(name, timestamp, airlineID); err != nil {
		return nil, err
	}
	flight, err := s.getFlightByDerivedKey(ctx, deriveFlightKey(airlineID, name, timestamp))
	if err != nil {
		return nil, err
	}
	if flight == nil {
		return nil, fmt.Errorf("flight '%s'/'%s'/%d: %w", airlineID, name, timestamp, ErrFlightNotFound)
	}
	return flight, nil
}

// ListFlights returns parallel sequences of keys, names, airlines, timestamps
// and status codes in registration order.
func (s *FlightSuretyContract) ListFlights(ctx contractapi.TransactionContextInterface) (*model.FlightManifest, error) {
	logger.Debug("Chaincode Call: ListFlights")

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(flightSeqObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("ListFlights: failed to get flight index iterator: %w", err)
	}
	defer resultsIterator.Close()

	manifest := &model.FlightManifest{
		Keys:        []string{},
		Names:       []string{},
		Airlines:    []string{},
		Timestamps:  []int64{},
		StatusCodes: []model.FlightStatusCode{},
	}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("ListFlights: failed to get next index entry: %v. Skipping.", iterErr)
			continue
		}
		derivedKey := string(queryResponse.Value)
		flight, err := s.getFlightByDerivedKey(ctx, derivedKey)
		if err != nil {
			return nil, fmt.Errorf("ListFlights: %w", err)
		}
		if flight == nil {
			logger.Warningf("ListFlights: index entry '%s' has no flight record. Skipping.", derivedKey)
			continue
		}
		manifest.Keys = append(manifest.Keys, derivedKey)
		manifest.Names = append(manifest.Names, flight.Name)
		manifest.Airlines = append(manifest.Airlines, flight.AirlineID)
		manifest.Timestamps = append(manifest.Timestamps, flight.Timestamp)
		manifest.StatusCodes = append(manifest.StatusCodes, flight.StatusCode)
	}
	logger.Debugf("ListFlights: returning %d flights", len(manifest.Keys))
	return manifest, nil
}

// RecordFlightStatus is the hook the external oracle-consensus authority calls
// with its already-decided delay code. A flight's status can be recorded
// exactly once; no aggregation of reports happens here.
func (s *FlightSuretyContract) RecordFlightStatus(ctx contractapi.TransactionContextInterface, name string, timestamp int64, airlineID string, statusCode int32) error {
	if err := s.requireControllerAndOperational(ctx); err != nil {
		return fmt.Errorf("RecordFlightStatus: %w", err)
	}
	if err := s.validateFlightIdentityArgs(name, timestamp, airlineID); err != nil {
		return err
	}
	code := model.FlightStatusCode(statusCode)
	switch code {
	case model.StatusOnTime, model.StatusLateAirline, model.StatusLateWeather, model.StatusLateTechnical, model.StatusLateOther:
	default:
		return fmt.Errorf("RecordFlightStatus: invalid status code %d", statusCode)
	}

	derivedKey := deriveFlightKey(airlineID, name, timestamp)
	flight, err := s.getFlightByDerivedKey(ctx, derivedKey)
	if err != nil {
		return fmt.Errorf("RecordFlightStatus: %w", err)
	}
	if flight == nil {
		return fmt.Errorf("RecordFlightStatus: flight '%s'/'%s'/%d: %w", airlineID, name, timestamp, ErrFlightNotFound)
	}
	if flight.StatusCode != model.StatusUnknown {
		return fmt.Errorf("RecordFlightStatus: flight '%s' already has status %d recorded: %w", derivedKey, flight.StatusCode, ErrAlreadyRegistered)
	}

	flight.StatusCode = code
	if err := s.putFlight(ctx, derivedKey, flight); err != nil {
		return fmt.Errorf("RecordFlightStatus: %w", err)
	}

	if err := s.emitEvent(ctx, "FlightStatusRecorded", map[string]interface{}{
		"key":        derivedKey,
		"statusCode": statusCode,
	}); err != nil {
		return fmt.Errorf("RecordFlightStatus: %w", err)
	}
	logger.Infof("Flight '%s' status recorded as %d by controller '%s'", derivedKey, statusCode, MustGetCallerFullID(ctx))
	return nil
}
