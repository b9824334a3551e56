/*
Package mongostore provides a MongoDB-backed implementation of billing.Store.

PURPOSE:
  Document-store deployment of the dashboard. Every interface method maps
  to a single-document MongoDB operation, so the atomicity each method
  promises comes from the server, not from a lock:

    NextSequence           findOneAndUpdate {$inc: {seq: 1}}, upsert, return after
    IncrementClientTotals  findOneAndUpdate {$inc: {totalProjects, totalAmountCents}}
    UpdateProject          findOneAndUpdate {$set: ...}, return before
    DeleteProject          findOneAndDelete

COLLECTIONS:
  clients      unique index on email
  projects     index on clientId
  invoices     unique index on number
  counters     _id is the sequence key ("invoices:2025")
  adjustments  parked client deltas, index on (appliedAt, createdAt)

SEE ALSO:
  - billing/store.go: Interface definitions
  - store/sqlite: Relational implementation
*/
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/warp/freelancers-dashboard/billing"
)

const (
	emailIndex  = "email_unique"
	numberIndex = "number_unique"
)

// Store implements billing.Store on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	clients     *mongo.Collection
	projects    *mongo.Collection
	invoices    *mongo.Collection
	counters    *mongo.Collection
	adjustments *mongo.Collection
}

var _ billing.Store = (*Store)(nil)

// New connects to uri, selects database and ensures indexes.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:      client,
		db:          db,
		clients:     db.Collection("clients"),
		projects:    db.Collection("projects"),
		invoices:    db.Collection("invoices"),
		counters:    db.Collection("counters"),
		adjustments: db.Collection("adjustments"),
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Drop removes the database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.clients, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndex),
		}},
		{s.clients, mongo.IndexModel{
			Keys: bson.D{{Key: "name", Value: 1}, {Key: "company", Value: 1}},
		}},
		{s.projects, mongo.IndexModel{
			Keys: bson.D{{Key: "clientId", Value: 1}},
		}},
		{s.invoices, mongo.IndexModel{
			Keys:    bson.D{{Key: "number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(numberIndex),
		}},
		{s.invoices, mongo.IndexModel{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
		}},
		{s.adjustments, mongo.IndexModel{
			Keys: bson.D{{Key: "appliedAt", Value: 1}, {Key: "createdAt", Value: 1}},
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type clientDoc struct {
	ID               string    `bson:"_id"`
	Name             string    `bson:"name"`
	Email            string    `bson:"email"`
	Company          string    `bson:"company"`
	TotalProjects    int64     `bson:"totalProjects"`
	TotalAmountCents int64     `bson:"totalAmountCents"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

func toClientDoc(c billing.Client) (clientDoc, error) {
	cents, err := billing.ToCents(c.TotalAmount)
	if err != nil {
		return clientDoc{}, err
	}
	return clientDoc{
		ID:               string(c.ID),
		Name:             c.Name,
		Email:            c.Email,
		Company:          c.Company,
		TotalProjects:    c.TotalProjects,
		TotalAmountCents: cents,
		CreatedAt:        c.CreatedAt.UTC(),
		UpdatedAt:        c.UpdatedAt.UTC(),
	}, nil
}

func (d clientDoc) client() billing.Client {
	return billing.Client{
		ID:            billing.ClientID(d.ID),
		Name:          d.Name,
		Email:         d.Email,
		Company:       d.Company,
		TotalProjects: d.TotalProjects,
		TotalAmount:   billing.FromCents(d.TotalAmountCents),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type projectDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	ClientID    string    `bson:"clientId"`
	Status      string    `bson:"status"`
	AmountCents int64     `bson:"amountCents"`
	Deadline    time.Time `bson:"deadline"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toProjectDoc(p billing.Project) (projectDoc, error) {
	cents, err := billing.ToCents(p.Amount)
	if err != nil {
		return projectDoc{}, err
	}
	return projectDoc{
		ID:          string(p.ID),
		Name:        p.Name,
		ClientID:    string(p.ClientID),
		Status:      string(p.Status),
		AmountCents: cents,
		Deadline:    p.Deadline.UTC(),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}, nil
}

func (d projectDoc) project() billing.Project {
	return billing.Project{
		ID:        billing.ProjectID(d.ID),
		Name:      d.Name,
		ClientID:  billing.ClientID(d.ClientID),
		Status:    billing.ProjectStatus(d.Status),
		Amount:    billing.FromCents(d.AmountCents),
		Deadline:  d.Deadline,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type invoiceDoc struct {
	ID          string    `bson:"_id"`
	Number      string    `bson:"number"`
	ClientID    string    `bson:"clientId,omitempty"`
	ClientName  string    `bson:"clientName"`
	AmountCents int64     `bson:"amountCents"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toInvoiceDoc(inv billing.Invoice) (invoiceDoc, error) {
	cents, err := billing.ToCents(inv.Amount)
	if err != nil {
		return invoiceDoc{}, err
	}
	return invoiceDoc{
		ID:          string(inv.ID),
		Number:      inv.Number,
		ClientID:    string(inv.ClientID),
		ClientName:  inv.ClientName,
		AmountCents: cents,
		Status:      string(inv.Status),
		CreatedAt:   inv.CreatedAt.UTC(),
		UpdatedAt:   inv.UpdatedAt.UTC(),
	}, nil
}

func (d invoiceDoc) invoice() billing.Invoice {
	return billing.Invoice{
		ID:         billing.InvoiceID(d.ID),
		Number:     d.Number,
		ClientID:   billing.ClientID(d.ClientID),
		ClientName: d.ClientName,
		Amount:     billing.FromCents(d.AmountCents),
		Status:     billing.InvoiceStatus(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type adjustmentDoc struct {
	ID               string     `bson:"_id"`
	ClientID         string     `bson:"clientId"`
	ProjectID        string     `bson:"projectId"`
	DeltaProjects    int64      `bson:"deltaProjects"`
	DeltaAmountCents int64      `bson:"deltaAmountCents"`
	Reason           string     `bson:"reason"`
	CreatedAt        time.Time  `bson:"createdAt"`
	AppliedAt        *time.Time `bson:"appliedAt"`
}

// =============================================================================
// COUNTERS
// =============================================================================

func (s *Store) NextSequence(ctx context.Context, key string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter %s: %w", key, err)
	}
	return doc.Seq, nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Store) InsertClient(ctx context.Context, c billing.Client) error {
	doc, err := toClientDoc(c)
	if err != nil {
		return err
	}
	if _, err := s.clients.InsertOne(ctx, doc); err != nil {
		return clientWriteError(err, c.Email)
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, id billing.ClientID) (billing.Client, error) {
	return s.findClient(ctx, bson.M{"_id": string(id)})
}

func (s *Store) findClient(ctx context.Context, filter bson.M) (billing.Client, error) {
	var doc clientDoc
	if err := s.clients.FindOne(ctx, filter).Decode(&doc); err != nil {
		return billing.Client{}, notFound(err)
	}
	return doc.client(), nil
}

// FindClientDuplicate prefers an email match over a name+company match.
func (s *Store) FindClientDuplicate(ctx context.Context, email, name, company string) (billing.Client, error) {
	c, err := s.findClient(ctx, bson.M{"email": email})
	if !errors.Is(err, billing.ErrNotFound) {
		return c, err
	}
	return s.findClient(ctx, bson.M{"name": name, "company": company})
}

func (s *Store) ListClients(ctx context.Context) ([]billing.Client, error) {
	cursor, err := s.clients.Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	var docs []clientDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	clients := make([]billing.Client, len(docs))
	for i, d := range docs {
		clients[i] = d.client()
	}
	return clients, nil
}

func (s *Store) UpdateClient(ctx context.Context, id billing.ClientID, patch billing.ClientPatch, at time.Time) (billing.Client, error) {
	set := bson.M{"updatedAt": at.UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Company != nil {
		set["company"] = *patch.Company
	}

	var doc clientDoc
	err := s.clients.FindOneAndUpdate(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return billing.Client{}, billing.ErrNotFound
		}
		email := ""
		if patch.Email != nil {
			email = *patch.Email
		}
		return billing.Client{}, clientWriteError(err, email)
	}
	return doc.client(), nil
}

func (s *Store) DeleteClient(ctx context.Context, id billing.ClientID) error {
	res, err := s.clients.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementClientTotals(ctx context.Context, id billing.ClientID, delta billing.Totals, at time.Time) (billing.Client, error) {
	cents, err := billing.ToCents(delta.Amount)
	if err != nil {
		return billing.Client{}, err
	}
	var doc clientDoc
	err = s.clients.FindOneAndUpdate(ctx,
		bson.M{"_id": string(id)},
		bson.M{
			"$inc": bson.M{
				"totalProjects":    delta.Projects,
				"totalAmountCents": cents,
			},
			"$set": bson.M{"updatedAt": at.UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return billing.Client{}, notFound(err)
	}
	return doc.client(), nil
}

func (s *Store) SetClientTotals(ctx context.Context, id billing.ClientID, totals billing.Totals, at time.Time) error {
	cents, err := billing.ToCents(totals.Amount)
	if err != nil {
		return err
	}
	res, err := s.clients.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{
			"totalProjects":    totals.Projects,
			"totalAmountCents": cents,
			"updatedAt":        at.UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func (s *Store) CountActiveClients(ctx context.Context) (int64, error) {
	return s.clients.CountDocuments(ctx, bson.M{"totalProjects": bson.M{"$gt": 0}})
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Store) InsertProject(ctx context.Context, p billing.Project) error {
	doc, err := toProjectDoc(p)
	if err != nil {
		return err
	}
	if _, err := s.projects.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &billing.DuplicateKeyError{Entity: "project", Field: "id", Value: string(p.ID)}
		}
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id billing.ProjectID) (billing.Project, error) {
	var doc projectDoc
	if err := s.projects.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return billing.Project{}, notFound(err)
	}
	return doc.project(), nil
}

func (s *Store) ListProjects(ctx context.Context) ([]billing.Project, error) {
	cursor, err := s.projects.Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	var docs []projectDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	projects := make([]billing.Project, len(docs))
	for i, d := range docs {
		projects[i] = d.project()
	}
	return projects, nil
}

// UpdateProject applies patch and returns the document as it was before.
func (s *Store) UpdateProject(ctx context.Context, id billing.ProjectID, patch billing.ProjectPatch, at time.Time) (billing.Project, error) {
	set := bson.M{"updatedAt": at.UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.ClientID != nil {
		set["clientId"] = string(*patch.ClientID)
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.Amount != nil {
		cents, err := billing.ToCents(*patch.Amount)
		if err != nil {
			return billing.Project{}, err
		}
		set["amountCents"] = cents
	}
	if patch.Deadline != nil {
		set["deadline"] = patch.Deadline.UTC()
	}

	var doc projectDoc
	err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&doc)
	if err != nil {
		return billing.Project{}, notFound(err)
	}
	return doc.project(), nil
}

func (s *Store) DeleteProject(ctx context.Context, id billing.ProjectID) (billing.Project, error) {
	var doc projectDoc
	if err := s.projects.FindOneAndDelete(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return billing.Project{}, notFound(err)
	}
	return doc.project(), nil
}

func (s *Store) CountProjects(ctx context.Context) (int64, error) {
	return s.projects.CountDocuments(ctx, bson.M{})
}

func (s *Store) CountProjectsByClient(ctx context.Context, id billing.ClientID) (int64, error) {
	return s.projects.CountDocuments(ctx, bson.M{"clientId": string(id)})
}

func (s *Store) SumProjectsByClient(ctx context.Context) (map[billing.ClientID]billing.Totals, error) {
	cursor, err := s.projects.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$clientId"},
			{Key: "count", Value: bson.M{"$sum": 1}},
			{Key: "cents", Value: bson.M{"$sum": "$amountCents"}},
		}}},
	})
	if err != nil {
		return nil, err
	}

	var groups []struct {
		ClientID string `bson:"_id"`
		Count    int64  `bson:"count"`
		Cents    int64  `bson:"cents"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}

	out := make(map[billing.ClientID]billing.Totals, len(groups))
	for _, g := range groups {
		out[billing.ClientID(g.ClientID)] = billing.Totals{Projects: g.Count, Amount: billing.FromCents(g.Cents)}
	}
	return out, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) InsertInvoice(ctx context.Context, inv billing.Invoice) error {
	doc, err := toInvoiceDoc(inv)
	if err != nil {
		return err
	}
	if _, err := s.invoices.InsertOne(ctx, doc); err != nil {
		if isDuplicateOnIndex(err, numberIndex) {
			return &billing.DuplicateKeyError{Entity: "invoice", Field: "number", Value: inv.Number}
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id billing.InvoiceID) (billing.Invoice, error) {
	var doc invoiceDoc
	if err := s.invoices.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return billing.Invoice{}, notFound(err)
	}
	return doc.invoice(), nil
}

func (s *Store) ListInvoices(ctx context.Context) ([]billing.Invoice, error) {
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "number", Value: -1}}
	cursor, err := s.invoices.Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	var docs []invoiceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(docs))
	for i, d := range docs {
		invoices[i] = d.invoice()
	}
	return invoices, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, id billing.InvoiceID, patch billing.InvoicePatch, at time.Time) (billing.Invoice, error) {
	set := bson.M{"updatedAt": at.UTC()}
	update := bson.M{"$set": set}
	if patch.ClientID != nil {
		if *patch.ClientID == "" {
			update["$unset"] = bson.M{"clientId": ""}
		} else {
			set["clientId"] = string(*patch.ClientID)
		}
	}
	if patch.ClientName != nil {
		set["clientName"] = *patch.ClientName
	}
	if patch.Amount != nil {
		cents, err := billing.ToCents(*patch.Amount)
		if err != nil {
			return billing.Invoice{}, err
		}
		set["amountCents"] = cents
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}

	var doc invoiceDoc
	err := s.invoices.FindOneAndUpdate(ctx,
		bson.M{"_id": string(id)},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return billing.Invoice{}, notFound(err)
	}
	return doc.invoice(), nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id billing.InvoiceID) error {
	res, err := s.invoices.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func (s *Store) CountInvoices(ctx context.Context, status billing.InvoiceStatus) (int64, error) {
	return s.invoices.CountDocuments(ctx, bson.M{"status": string(status)})
}

func (s *Store) SumInvoices(ctx context.Context, status billing.InvoiceStatus, from, to time.Time) (decimal.Decimal, error) {
	cursor, err := s.invoices.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":    string(status),
			"createdAt": bson.M{"$gte": from.UTC(), "$lt": to.UTC()},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "cents", Value: bson.M{"$sum": "$amountCents"}},
		}}},
	})
	if err != nil {
		return decimal.Zero, err
	}

	var result []struct {
		Cents int64 `bson:"cents"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return decimal.Zero, err
	}
	if len(result) == 0 {
		return decimal.Zero, nil
	}
	return billing.FromCents(result[0].Cents), nil
}

// =============================================================================
// ADJUSTMENT LOG
// =============================================================================

func (s *Store) AppendAdjustments(ctx context.Context, adjs []billing.Adjustment) error {
	if len(adjs) == 0 {
		return nil
	}
	docs := make([]any, len(adjs))
	for i, adj := range adjs {
		cents, err := billing.ToCents(adj.Delta.Amount)
		if err != nil {
			return err
		}
		docs[i] = adjustmentDoc{
			ID:               adj.ID,
			ClientID:         string(adj.ClientID),
			ProjectID:        string(adj.ProjectID),
			DeltaProjects:    adj.Delta.Projects,
			DeltaAmountCents: cents,
			Reason:           string(adj.Reason),
			CreatedAt:        adj.CreatedAt.UTC(),
			AppliedAt:        adj.AppliedAt,
		}
	}
	_, err := s.adjustments.InsertMany(ctx, docs)
	return err
}

func (s *Store) PendingAdjustments(ctx context.Context, limit int) ([]billing.Adjustment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.adjustments.Find(ctx, bson.M{"appliedAt": nil}, opts)
	if err != nil {
		return nil, err
	}
	var docs []adjustmentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	adjs := make([]billing.Adjustment, len(docs))
	for i, d := range docs {
		adjs[i] = billing.Adjustment{
			ID:        d.ID,
			ClientID:  billing.ClientID(d.ClientID),
			ProjectID: billing.ProjectID(d.ProjectID),
			Delta:     billing.Totals{Projects: d.DeltaProjects, Amount: billing.FromCents(d.DeltaAmountCents)},
			Reason:    billing.AdjustmentReason(d.Reason),
			CreatedAt: d.CreatedAt,
		}
	}
	return adjs, nil
}

func (s *Store) MarkAdjustmentApplied(ctx context.Context, id string, at time.Time) error {
	res, err := s.adjustments.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"appliedAt": at.UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// Helper functions

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return billing.ErrNotFound
	}
	return err
}

func isDuplicateOnIndex(err error, index string) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), index)
}

func clientWriteError(err error, email string) error {
	if isDuplicateOnIndex(err, emailIndex) {
		return &billing.DuplicateKeyError{Entity: "client", Field: "email", Value: email}
	}
	return fmt.Errorf("failed to write client: %w", err)
}
