// Package mongo is the MongoDB parklot store.
//
// Atomic sections run as multi-document transactions and need a replica
// set. Conflicting sections abort with a transient write conflict; Atomic
// retries them until the store's lock timeout and then reports
// parklot.ErrSystemBusy. Partial unique indexes on the open flag keep at
// most one OPEN transaction per plate and per spot.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/allocation"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/store"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

// Collection name constants.
const (
	colSpots        = "parklot_spots"
	colTransactions = "parklot_transactions"
	colRateCards    = "parklot_rate_cards"
	colPlateLocks   = "parklot_plate_locks"
)

// Index names the store translates into domain conflicts.
const (
	idxSpotPosition = "idx_parklot_spots_position"
	idxOpenPlate    = "idx_parklot_txn_open_plate"
	idxOpenSpot     = "idx_parklot_txn_open_spot"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store on a MongoDB database.
type Store struct {
	client      *mongo.Client
	db          *mongo.Database
	lockTimeout time.Duration
	closed      atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long a section keeps retrying write conflicts.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// New wraps a connected client. The store disconnects it on Close.
func New(client *mongo.Client, database string, opts ...Option) *Store {
	s := &Store{
		client:      client,
		db:          client.Database(database),
		lockTimeout: store.DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to uri and returns a Store on database.
func Open(uri, database string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("parklot/mongo: connect: %w", err)
	}
	return New(client, database, opts...), nil
}

// Database returns the underlying database for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates the collections and indexes. Collections must exist
// before transactions can write to them.
func (s *Store) Migrate(ctx context.Context) error {
	for _, col := range []string{colSpots, colTransactions, colRateCards, colPlateLocks} {
		err := s.db.CreateCollection(ctx, col)
		if err != nil && !isNamespaceExists(err) {
			return fmt.Errorf("parklot/mongo: create %s: %w", col, err)
		}
	}
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("parklot/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return parklot.ErrStoreClosed
	}
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Atomic ====================

// Atomic runs fn in a multi-document transaction, retrying transient
// conflicts until the lock timeout expires.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if s.closed.Load() {
		return parklot.ErrStoreClosed
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("parklot/mongo: start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	deadline := time.Now().Add(s.lockTimeout)
	for {
		err := s.attempt(ctx, sess, fn)
		if err == nil || !hasLabel(err, labelTransientTransaction) {
			return mapError(err)
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			switch {
			case errors.Is(ctx.Err(), context.Canceled):
				return ctx.Err()
			case ctx.Err() != nil:
				return fmt.Errorf("%w: %w", parklot.ErrSystemBusy, ctx.Err())
			}
			return fmt.Errorf("%w: write conflict persisted for %s: %w", parklot.ErrSystemBusy, s.lockTimeout, err)
		}
	}
}

func (s *Store) attempt(ctx context.Context, sess *mongo.Session, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(txOpts); err != nil {
		return fmt.Errorf("parklot/mongo: start transaction: %w", err)
	}
	sctx := mongo.NewSessionContext(ctx, sess)
	abort := func() {
		_ = sess.AbortTransaction(context.WithoutCancel(ctx)) //nolint:errcheck // the section's error wins
	}
	defer func() {
		if r := recover(); r != nil {
			abort()
			panic(r)
		}
	}()

	err = fn(sctx, &mongoTx{s: s})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		abort()
		return err
	}

	for {
		err = sess.CommitTransaction(sctx)
		if err == nil || !hasLabel(err, labelUnknownCommitResult) || ctx.Err() != nil {
			return err
		}
	}
}

type mongoTx struct {
	s *Store
}

func (t *mongoTx) col(name string) *mongo.Collection { return t.s.db.Collection(name) }

// LockVehicle writes the plate's lock document, so a concurrent section for
// the same plate conflicts and retries.
func (t *mongoTx) LockVehicle(ctx context.Context, plate string) error {
	_, err := t.col(colPlateLocks).UpdateOne(ctx,
		bson.M{"_id": plate},
		bson.M{"$inc": bson.M{"version": 1}, "$set": bson.M{"updated_at": now()}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func (t *mongoTx) ActiveTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	return findTransaction(ctx, t.col(colTransactions), bson.M{"license_plate": plate, "open": true})
}

func (t *mongoTx) OpenTransactionForSpot(ctx context.Context, spotID id.SpotID) (*transaction.Transaction, error) {
	return findTransaction(ctx, t.col(colTransactions), bson.M{"spot_id": spotID.String(), "open": true})
}

func (t *mongoTx) ClaimSpot(ctx context.Context, v vehicle.Vehicle, policy allocation.Policy, at time.Time) (*spot.Spot, error) {
	eligible := make([]string, 0, 3)
	for _, st := range v.Type.EligibleSpotTypes() {
		eligible = append(eligible, string(st))
	}
	filter := bson.M{"status": string(spot.StatusAvailable), "spot_type": bson.M{"$in": eligible}}

	candidates, err := findSpots(ctx, t.col(colSpots), filter, nil)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for %s", parklot.ErrNoSpotAvailable, v.Type)
	}
	chosen := policy.Select(v.Type, candidates)
	if chosen == nil {
		return nil, fmt.Errorf("%w for %s", parklot.ErrNoSpotAvailable, v.Type)
	}

	filter["_id"] = chosen.ID.String()
	claimed, err := updateSpot(ctx, t.col(colSpots), filter,
		bson.M{"status": string(spot.StatusOccupied), "occupant": v.LicensePlate}, at)
	if errors.Is(err, parklot.ErrSpotNotFound) {
		return nil, fmt.Errorf("%w: policy %s chose ineligible spot %s", parklot.ErrInconsistency, policy.Name(), chosen.ID)
	}
	return claimed, err
}

func (t *mongoTx) ReleaseSpot(ctx context.Context, spotID id.SpotID, at time.Time) (*spot.Spot, error) {
	released, err := updateSpot(ctx, t.col(colSpots),
		bson.M{"_id": spotID.String(), "status": string(spot.StatusOccupied)},
		bson.M{"status": string(spot.StatusAvailable), "occupant": ""}, at)
	if !errors.Is(err, parklot.ErrSpotNotFound) {
		return released, err
	}
	current, err := getSpot(ctx, t.col(colSpots), spotID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotOccupied, current.Label(), current.Status)
}

func (t *mongoTx) SetSpotStatus(ctx context.Context, spotID id.SpotID, from, to spot.Status, at time.Time) (*spot.Spot, error) {
	if err := spot.CheckAdminTransition(from, to); err != nil {
		return nil, err
	}
	updated, err := updateSpot(ctx, t.col(colSpots),
		bson.M{"_id": spotID.String(), "status": string(from)},
		bson.M{"status": string(to)}, at)
	if !errors.Is(err, parklot.ErrSpotNotFound) {
		return updated, err
	}
	current, err := getSpot(ctx, t.col(colSpots), spotID)
	if err != nil {
		return nil, err
	}
	return nil, transitionConflict(from, current)
}

func (t *mongoTx) OpenTransaction(ctx context.Context, txn *transaction.Transaction) error {
	if !txn.IsOpen() {
		return fmt.Errorf("%w: transaction %s is already closed", parklot.ErrInvalidInput, txn.ID)
	}
	_, err := t.col(colTransactions).InsertOne(ctx, toTransactionModel(txn))
	return mapError(err)
}

func (t *mongoTx) CloseTransaction(ctx context.Context, txn *transaction.Transaction) error {
	if txn.IsOpen() {
		return fmt.Errorf("%w: transaction %s has no exit recorded", parklot.ErrInvalidInput, txn.ID)
	}
	m := toTransactionModel(txn)
	res, err := t.col(colTransactions).UpdateOne(ctx,
		bson.M{"_id": m.ID, "open": true},
		bson.M{"$set": bson.M{
			"open":             false,
			"exit_time":        m.ExitTime,
			"duration_minutes": m.DurationMinutes,
			"parking_fee":      m.ParkingFee,
			"fee_breakdown":    m.Fee,
			"payment_status":   m.PaymentStatus,
			"updated_at":       m.UpdatedAt,
		}},
	)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := t.col(colTransactions).CountDocuments(ctx, bson.M{"_id": m.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return parklot.ErrTransactionNotFound
	}
	return parklot.ErrAlreadyExited
}

// ==================== Inventory ====================

func (s *Store) CreateSpot(ctx context.Context, sp *spot.Spot) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	if sp.ID.IsNil() {
		return fmt.Errorf("%w: spot has no id", parklot.ErrInvalidInput)
	}
	_, err := s.db.Collection(colSpots).InsertOne(ctx, toSpotModel(sp))
	if err = mapError(err); errors.Is(err, parklot.ErrDuplicateSpot) {
		return fmt.Errorf("%w: %s", parklot.ErrDuplicateSpot, sp.Label())
	}
	if err != nil {
		return fmt.Errorf("parklot/mongo: create spot: %w", err)
	}
	return nil
}

func (s *Store) GetSpot(ctx context.Context, spotID id.SpotID) (*spot.Spot, error) {
	return getSpot(ctx, s.db.Collection(colSpots), spotID)
}

func (s *Store) ListSpots(ctx context.Context, opts spot.ListOpts) ([]*spot.Spot, error) {
	filter := bson.M{}
	if opts.Type != nil {
		filter["spot_type"] = string(*opts.Type)
	}
	if opts.Floor != nil {
		filter["floor"] = *opts.Floor
	}
	if opts.Status != nil {
		filter["status"] = string(*opts.Status)
	}
	find := options.Find().SetSort(bson.D{{Key: "floor", Value: 1}, {Key: "spot_number", Value: 1}})
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		find.SetSkip(int64(opts.Offset))
	}
	return findSpots(ctx, s.db.Collection(colSpots), filter, find)
}

type availabilityGroup struct {
	Key struct {
		Floor  int    `bson:"floor"`
		Type   string `bson:"spot_type"`
		Status string `bson:"status"`
	} `bson:"_id"`
	N int `bson:"n"`
}

// Availability groups spot counts in one aggregation read from a snapshot
// session, so the counts reflect a single point in time.
func (s *Store) Availability(ctx context.Context, f spot.Filter) (*spot.Availability, error) {
	sess, err := s.client.StartSession(options.Session().SetSnapshot(true))
	if err != nil {
		return nil, fmt.Errorf("parklot/mongo: start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))
	sctx := mongo.NewSessionContext(ctx, sess)

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"floor": "$floor", "spot_type": "$spot_type", "status": "$status"},
			"n":   bson.M{"$sum": 1},
		}}},
	}
	cur, err := s.db.Collection(colSpots).Aggregate(sctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("parklot/mongo: availability: %w", err)
	}
	var groups []availabilityGroup
	if err := cur.All(sctx, &groups); err != nil {
		return nil, fmt.Errorf("parklot/mongo: availability: %w", err)
	}

	tally := spot.NewTally()
	for _, g := range groups {
		tally.Count(g.Key.Floor, vehicle.Type(g.Key.Type), spot.Status(g.Key.Status), g.N)
	}
	return tally.Snapshot(f), nil
}

// ==================== Ledger ====================

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	t, err := findTransaction(ctx, s.db.Collection(colTransactions), bson.M{"_id": txnID.String()})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, parklot.ErrTransactionNotFound
	}
	return t, nil
}

func (s *Store) FindActiveTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	return findTransaction(ctx, s.db.Collection(colTransactions), bson.M{"license_plate": plate, "open": true})
}

// newestFirst orders history by entry time; the time-ordered id breaks ties.
var newestFirst = bson.D{{Key: "entry_time", Value: -1}, {Key: "_id", Value: -1}}

func (s *Store) LatestTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	var m transactionModel
	err := s.db.Collection(colTransactions).
		FindOne(ctx, bson.M{"license_plate": plate}, options.FindOne().SetSort(newestFirst)).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("parklot/mongo: latest transaction: %w", err)
	}
	return fromTransactionModel(&m)
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	filter := bson.M{}
	if opts.LicensePlate != "" {
		filter["license_plate"] = opts.LicensePlate
	}
	switch opts.State {
	case transaction.StateOpen:
		filter["open"] = true
	case transaction.StateClosed:
		filter["open"] = false
	}
	find := options.Find().SetSort(newestFirst)
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		find.SetSkip(int64(opts.Offset))
	}
	return findTransactions(ctx, s.db.Collection(colTransactions), filter, find)
}

func (s *Store) ListOpenTransactions(ctx context.Context, openedBefore time.Time) ([]*transaction.Transaction, error) {
	return findTransactions(ctx, s.db.Collection(colTransactions),
		bson.M{"open": true, "entry_time": bson.M{"$lt": openedBefore.UTC()}},
		options.Find().SetSort(bson.D{{Key: "entry_time", Value: 1}, {Key: "_id", Value: 1}}))
}

// ==================== Rate cards ====================

func (s *Store) PutRateCard(ctx context.Context, c *ratecard.RateCard) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m := toRateCardModel(c)
	_, err := s.db.Collection(colRateCards).ReplaceOne(ctx,
		bson.M{"_id": m.VehicleType}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("parklot/mongo: put rate card: %w", err)
	}
	return nil
}

func (s *Store) GetRateCard(ctx context.Context, vt vehicle.Type) (*ratecard.RateCard, error) {
	var m rateCardModel
	err := s.db.Collection(colRateCards).FindOne(ctx, bson.M{"_id": string(vt)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", parklot.ErrRateCardNotFound, vt)
		}
		return nil, fmt.Errorf("parklot/mongo: get rate card: %w", err)
	}
	return fromRateCardModel(&m)
}

func (s *Store) ListRateCards(ctx context.Context) ([]*ratecard.RateCard, error) {
	cur, err := s.db.Collection(colRateCards).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("parklot/mongo: list rate cards: %w", err)
	}
	var models []rateCardModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("parklot/mongo: list rate cards: %w", err)
	}

	byType := make(map[vehicle.Type]*ratecard.RateCard, len(models))
	for i := range models {
		c, err := fromRateCardModel(&models[i])
		if err != nil {
			return nil, err
		}
		byType[c.VehicleType] = c
	}
	result := make([]*ratecard.RateCard, 0, len(byType))
	for _, vt := range vehicle.Types {
		if c, ok := byType[vt]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *Store) DeleteRateCard(ctx context.Context, vt vehicle.Type) error {
	res, err := s.db.Collection(colRateCards).DeleteOne(ctx, bson.M{"_id": string(vt)})
	if err != nil {
		return fmt.Errorf("parklot/mongo: delete rate card: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", parklot.ErrRateCardNotFound, vt)
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func getSpot(ctx context.Context, col *mongo.Collection, spotID id.SpotID) (*spot.Spot, error) {
	var m spotModel
	if err := col.FindOne(ctx, bson.M{"_id": spotID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, parklot.ErrSpotNotFound
		}
		return nil, fmt.Errorf("parklot/mongo: get spot: %w", err)
	}
	return fromSpotModel(&m)
}

func findSpots(ctx context.Context, col *mongo.Collection, filter bson.M, find *options.FindOptionsBuilder) ([]*spot.Spot, error) {
	if find == nil {
		find = options.Find()
	}
	cur, err := col.Find(ctx, filter, find)
	if err != nil {
		return nil, fmt.Errorf("parklot/mongo: find spots: %w", err)
	}
	var models []spotModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("parklot/mongo: find spots: %w", err)
	}
	result := make([]*spot.Spot, len(models))
	for i := range models {
		sp, err := fromSpotModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sp
	}
	return result, nil
}

// updateSpot applies set to the spot matching filter, stamps it with at, and
// returns the new state, or ErrSpotNotFound when nothing matched.
func updateSpot(ctx context.Context, col *mongo.Collection, filter, set bson.M, at time.Time) (*spot.Spot, error) {
	set["updated_at"] = at.UTC()
	var m spotModel
	err := col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, parklot.ErrSpotNotFound
		}
		return nil, err
	}
	return fromSpotModel(&m)
}

// findTransaction returns nil, nil when nothing matches.
func findTransaction(ctx context.Context, col *mongo.Collection, filter bson.M) (*transaction.Transaction, error) {
	var m transactionModel
	if err := col.FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, err
	}
	return fromTransactionModel(&m)
}

func findTransactions(ctx context.Context, col *mongo.Collection, filter bson.M, find *options.FindOptionsBuilder) ([]*transaction.Transaction, error) {
	cur, err := col.Find(ctx, filter, find)
	if err != nil {
		return nil, fmt.Errorf("parklot/mongo: find transactions: %w", err)
	}
	var models []transactionModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("parklot/mongo: find transactions: %w", err)
	}
	result := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

func transitionConflict(from spot.Status, sp *spot.Spot) error {
	if from == spot.StatusAvailable {
		return fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotAvailable, sp.Label(), sp.Status)
	}
	return fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotInMaintenance, sp.Label(), sp.Status)
}

// mapError translates duplicate-key errors on the named indexes into
// parklot sentinels.
func mapError(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, idxOpenPlate):
		return fmt.Errorf("%w: %w", parklot.ErrVehicleAlreadyParked, err)
	case strings.Contains(msg, idxOpenSpot):
		return fmt.Errorf("%w: spot already has an open transaction: %w", parklot.ErrInconsistency, err)
	case strings.Contains(msg, idxSpotPosition), strings.Contains(msg, colSpots):
		return fmt.Errorf("%w: %w", parklot.ErrDuplicateSpot, err)
	case strings.Contains(msg, colTransactions):
		return fmt.Errorf("%w: duplicate transaction id: %w", parklot.ErrInvalidInput, err)
	}
	return err
}

// Server error labels that mark a transaction or its commit as retryable.
const (
	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"
)

func hasLabel(err error, label string) bool {
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel(label)
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == 48
}

// migrationIndexes returns the index definitions for all parklot collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSpots: {
			{
				Keys:    bson.D{{Key: "floor", Value: 1}, {Key: "spot_number", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxSpotPosition),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "spot_type", Value: 1}}},
		},
		colTransactions: {
			{
				Keys:    bson.D{{Key: "license_plate", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxOpenPlate).SetPartialFilterExpression(bson.M{"open": true}),
			},
			{
				Keys:    bson.D{{Key: "spot_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxOpenSpot).SetPartialFilterExpression(bson.M{"open": true}),
			},
			{Keys: bson.D{{Key: "license_plate", Value: 1}, {Key: "entry_time", Value: -1}}},
			{Keys: bson.D{{Key: "open", Value: 1}, {Key: "entry_time", Value: 1}}},
		},
	}
}
