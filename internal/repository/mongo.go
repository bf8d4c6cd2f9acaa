package repository

import (
	"context"
	"errors"
	"time"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tên các collection trong MongoDB.
const (
	OrdersCollection      = "repair_orders"
	ItemsCollection       = "repair_items"
	AssignmentsCollection = "repair_item_assigned_workers"
	TransfersCollection   = "repair_item_transfers"
	ImagesCollection      = "repair_item_images"
	WorkersCollection     = "repair_workers"
	UsersCollection       = "users"
)

const tracerName = "garage-repair-api-server/repository"

// MongoRepository implements Repository on top of a mongo database.
type MongoRepository struct {
	DB *mongo.Database
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{DB: db}
}

func (r *MongoRepository) col(name string) *mongo.Collection {
	return r.DB.Collection(name)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, span
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound(format, args...)
	}
	return err
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Orders ---

func (r *MongoRepository) CreateOrder(ctx context.Context, order *models.RepairOrder) error {
	ctx, span := startSpan(ctx, "MongoCreateOrder", attribute.String("orderID", order.ID))
	defer span.End()

	if _, err := r.col(OrdersCollection).InsertOne(ctx, order); err != nil {
		return fail(span, err, "Failed to insert repair order")
	}
	return nil
}

func (r *MongoRepository) GetOrder(ctx context.Context, id string) (*models.RepairOrder, error) {
	ctx, span := startSpan(ctx, "MongoGetOrder", attribute.String("orderID", id))
	defer span.End()

	var order models.RepairOrder
	if err := r.col(OrdersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, fail(span, notFound(err, "repair order %s", id), "Failed to find repair order")
	}
	return &order, nil
}

func (r *MongoRepository) ListOrders(ctx context.Context, status string) ([]models.RepairOrder, error) {
	ctx, span := startSpan(ctx, "MongoListOrders", attribute.String("status", status))
	defer span.End()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}})
	orders, err := findAll[models.RepairOrder](ctx, r.col(OrdersCollection), filter, opts)
	if err != nil {
		return nil, fail(span, err, "Failed to query repair orders")
	}
	span.SetAttributes(attribute.Int("orderCount", len(orders)))
	return orders, nil
}

func (r *MongoRepository) updateOrder(ctx context.Context, id string, set bson.M, unset bson.M) error {
	set["updated_at"] = time.Now()
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := r.col(OrdersCollection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("repair order %s", id)
	}
	return nil
}

func (r *MongoRepository) UpdateOrderStatus(ctx context.Context, id, status string) error {
	ctx, span := startSpan(ctx, "MongoUpdateOrderStatus", attribute.String("orderID", id), attribute.String("status", status))
	defer span.End()

	if err := r.updateOrder(ctx, id, bson.M{"status": status}, nil); err != nil {
		return fail(span, err, "Failed to update repair order status")
	}
	return nil
}

func (r *MongoRepository) UpdatePartsWaiting(ctx context.Context, id string, pw models.PartsWaiting) error {
	ctx, span := startSpan(ctx, "MongoUpdatePartsWaiting", attribute.String("orderID", id), attribute.Bool("waiting", pw.WaitingForParts))
	defer span.End()

	var err error
	if pw.WaitingForParts {
		err = r.updateOrder(ctx, id, bson.M{
			"waiting_for_parts":       true,
			"parts_order_start_time":  pw.PartsOrderStartTime,
			"parts_expected_end_time": pw.PartsExpectedEndTime,
			"parts_note":              pw.PartsNote,
		}, nil)
	} else {
		err = r.updateOrder(ctx, id, bson.M{"waiting_for_parts": false}, bson.M{
			"parts_order_start_time":  "",
			"parts_expected_end_time": "",
			"parts_note":              "",
		})
	}
	if err != nil {
		return fail(span, err, "Failed to update parts status")
	}
	return nil
}

// DeleteOrder xóa con trước, đơn sau cùng, để một lần xóa hỏng giữa chừng có thể gọi lại.
func (r *MongoRepository) DeleteOrder(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "MongoDeleteOrder", attribute.String("orderID", id))
	defer span.End()

	if _, err := r.GetOrder(ctx, id); err != nil {
		return fail(span, err, "Failed to find repair order")
	}

	items, err := r.ListItems(ctx, id)
	if err != nil {
		return fail(span, err, "Failed to list repair items")
	}
	itemIDs := make([]string, 0, len(items))
	for _, it := range items {
		itemIDs = append(itemIDs, it.ID)
	}

	if len(itemIDs) > 0 {
		byItem := bson.M{"item_id": bson.M{"$in": itemIDs}}
		for _, name := range []string{ImagesCollection, TransfersCollection, AssignmentsCollection} {
			if _, err := r.col(name).DeleteMany(ctx, byItem); err != nil {
				return fail(span, err, "Failed to delete from "+name)
			}
		}
		if _, err := r.col(ItemsCollection).DeleteMany(ctx, bson.M{"order_id": id}); err != nil {
			return fail(span, err, "Failed to delete repair items")
		}
	}
	if _, err := r.col(OrdersCollection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fail(span, err, "Failed to delete repair order")
	}
	span.SetAttributes(attribute.Int("itemCount", len(itemIDs)))
	return nil
}

// --- Items ---

func (r *MongoRepository) CreateItem(ctx context.Context, item *models.RepairItem) error {
	ctx, span := startSpan(ctx, "MongoCreateItem", attribute.String("itemID", item.ID), attribute.String("orderID", item.OrderID))
	defer span.End()

	if _, err := r.col(ItemsCollection).InsertOne(ctx, item); err != nil {
		return fail(span, err, "Failed to insert repair item")
	}
	return nil
}

func (r *MongoRepository) GetItem(ctx context.Context, id string) (*models.RepairItem, error) {
	ctx, span := startSpan(ctx, "MongoGetItem", attribute.String("itemID", id))
	defer span.End()

	var item models.RepairItem
	if err := r.col(ItemsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return nil, fail(span, notFound(err, "repair item %s", id), "Failed to find repair item")
	}
	return &item, nil
}

func (r *MongoRepository) ListItems(ctx context.Context, orderID string) ([]models.RepairItem, error) {
	ctx, span := startSpan(ctx, "MongoListItems", attribute.String("orderID", orderID))
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "order_index", Value: 1}, {Key: "created_at", Value: 1}})
	items, err := findAll[models.RepairItem](ctx, r.col(ItemsCollection), bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fail(span, err, "Failed to query repair items")
	}
	return items, nil
}

func (r *MongoRepository) CountChildren(ctx context.Context, itemID string) (int64, error) {
	ctx, span := startSpan(ctx, "MongoCountChildren", attribute.String("itemID", itemID))
	defer span.End()

	n, err := r.col(ItemsCollection).CountDocuments(ctx, bson.M{"parent_id": itemID})
	if err != nil {
		return 0, fail(span, err, "Failed to count sub-items")
	}
	return n, nil
}

// UpdateItem chỉ ghi khi trạng thái trong DB vẫn là fromStatus (ai nhanh hơn thắng).
func (r *MongoRepository) UpdateItem(ctx context.Context, item *models.RepairItem, fromStatus string) error {
	ctx, span := startSpan(ctx, "MongoUpdateItem",
		attribute.String("itemID", item.ID),
		attribute.String("fromStatus", fromStatus),
		attribute.String("toStatus", item.Status),
	)
	defer span.End()

	res, err := r.col(ItemsCollection).ReplaceOne(ctx, bson.M{"_id": item.ID, "status": fromStatus}, item)
	if err != nil {
		return fail(span, err, "Failed to update repair item")
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetItem(ctx, item.ID); err != nil {
			return fail(span, err, "Repair item disappeared")
		}
		return fail(span, apperr.Conflict("item %s is no longer %s", item.ID, fromStatus), "Lost status race")
	}
	return nil
}

// --- Ledger ---

func (r *MongoRepository) AddAssignment(ctx context.Context, a *models.RepairItemAssignedWorker) error {
	ctx, span := startSpan(ctx, "MongoAddAssignment", attribute.String("itemID", a.ItemID), attribute.String("workerID", a.WorkerID))
	defer span.End()

	if _, err := r.col(AssignmentsCollection).InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = apperr.Conflict("worker %s is already assigned to item %s", a.WorkerID, a.ItemID)
		}
		return fail(span, err, "Failed to insert assignment")
	}
	return nil
}

func (r *MongoRepository) UpdateAssignment(ctx context.Context, a *models.RepairItemAssignedWorker) error {
	ctx, span := startSpan(ctx, "MongoUpdateAssignment", attribute.String("itemID", a.ItemID), attribute.String("workerID", a.WorkerID))
	defer span.End()

	filter := bson.M{"item_id": a.ItemID, "worker_id": a.WorkerID}
	res, err := r.col(AssignmentsCollection).ReplaceOne(ctx, filter, a)
	if err != nil {
		return fail(span, err, "Failed to update assignment")
	}
	if res.MatchedCount == 0 {
		return fail(span, apperr.NotFound("assignment of %s on item %s", a.WorkerID, a.ItemID), "Assignment not found")
	}
	return nil
}

func (r *MongoRepository) RemoveAssignment(ctx context.Context, itemID, workerID string) error {
	ctx, span := startSpan(ctx, "MongoRemoveAssignment", attribute.String("itemID", itemID), attribute.String("workerID", workerID))
	defer span.End()

	res, err := r.col(AssignmentsCollection).DeleteOne(ctx, bson.M{"item_id": itemID, "worker_id": workerID})
	if err != nil {
		return fail(span, err, "Failed to delete assignment")
	}
	if res.DeletedCount == 0 {
		return fail(span, apperr.NotFound("assignment of %s on item %s", workerID, itemID), "Assignment not found")
	}
	return nil
}

func (r *MongoRepository) ListAssignments(ctx context.Context, itemIDs []string) ([]models.RepairItemAssignedWorker, error) {
	ctx, span := startSpan(ctx, "MongoListAssignments", attribute.Int("itemCount", len(itemIDs)))
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "assigned_at", Value: 1}})
	out, err := findAll[models.RepairItemAssignedWorker](ctx, r.col(AssignmentsCollection), bson.M{"item_id": bson.M{"$in": itemIDs}}, opts)
	if err != nil {
		return nil, fail(span, err, "Failed to query assignments")
	}
	return out, nil
}

func (r *MongoRepository) AddTransfer(ctx context.Context, t *models.RepairItemTransfer) error {
	ctx, span := startSpan(ctx, "MongoAddTransfer",
		attribute.String("itemID", t.ItemID),
		attribute.String("from", t.FromWorkerID),
		attribute.String("to", t.ToWorkerID),
	)
	defer span.End()

	if _, err := r.col(TransfersCollection).InsertOne(ctx, t); err != nil {
		return fail(span, err, "Failed to insert transfer")
	}
	return nil
}

func (r *MongoRepository) ListTransfers(ctx context.Context, itemIDs []string) ([]models.RepairItemTransfer, error) {
	ctx, span := startSpan(ctx, "MongoListTransfers", attribute.Int("itemCount", len(itemIDs)))
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "transferred_at", Value: 1}})
	out, err := findAll[models.RepairItemTransfer](ctx, r.col(TransfersCollection), bson.M{"item_id": bson.M{"$in": itemIDs}}, opts)
	if err != nil {
		return nil, fail(span, err, "Failed to query transfers")
	}
	return out, nil
}

// --- Images ---

func (r *MongoRepository) AddImage(ctx context.Context, img *models.RepairItemImage) error {
	ctx, span := startSpan(ctx, "MongoAddImage", attribute.String("itemID", img.ItemID), attribute.String("type", img.Type))
	defer span.End()

	if _, err := r.col(ImagesCollection).InsertOne(ctx, img); err != nil {
		return fail(span, err, "Failed to insert image record")
	}
	return nil
}

func (r *MongoRepository) ListImages(ctx context.Context, itemIDs []string) ([]models.RepairItemImage, error) {
	ctx, span := startSpan(ctx, "MongoListImages", attribute.Int("itemCount", len(itemIDs)))
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "captured_at", Value: 1}})
	out, err := findAll[models.RepairItemImage](ctx, r.col(ImagesCollection), bson.M{"item_id": bson.M{"$in": itemIDs}}, opts)
	if err != nil {
		return nil, fail(span, err, "Failed to query images")
	}
	return out, nil
}

// --- Roster & users ---

func (r *MongoRepository) CreateWorker(ctx context.Context, w *models.RepairWorker) error {
	ctx, span := startSpan(ctx, "MongoCreateWorker", attribute.String("workerID", w.ID))
	defer span.End()

	if _, err := r.col(WorkersCollection).InsertOne(ctx, w); err != nil {
		return fail(span, err, "Failed to insert worker")
	}
	return nil
}

func (r *MongoRepository) GetWorker(ctx context.Context, id string) (*models.RepairWorker, error) {
	ctx, span := startSpan(ctx, "MongoGetWorker", attribute.String("workerID", id))
	defer span.End()

	var w models.RepairWorker
	if err := r.col(WorkersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		return nil, fail(span, notFound(err, "worker %s", id), "Failed to find worker")
	}
	return &w, nil
}

func (r *MongoRepository) ListWorkers(ctx context.Context) ([]models.RepairWorker, error) {
	ctx, span := startSpan(ctx, "MongoListWorkers")
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	out, err := findAll[models.RepairWorker](ctx, r.col(WorkersCollection), bson.M{}, opts)
	if err != nil {
		return nil, fail(span, err, "Failed to query workers")
	}
	return out, nil
}

func (r *MongoRepository) CreateUser(ctx context.Context, u *models.User) error {
	ctx, span := startSpan(ctx, "MongoCreateUser", attribute.String("username", u.Username))
	defer span.End()

	if _, err := r.col(UsersCollection).InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = apperr.Conflict("username %s is taken", u.Username)
		}
		return fail(span, err, "Failed to insert user")
	}
	return nil
}

func (r *MongoRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, span := startSpan(ctx, "MongoGetUserByUsername", attribute.String("username", username))
	defer span.End()

	var u models.User
	if err := r.col(UsersCollection).FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return nil, fail(span, notFound(err, "user %s", username), "Failed to find user")
	}
	return &u, nil
}

func (r *MongoRepository) CountUsers(ctx context.Context) (int64, error) {
	ctx, span := startSpan(ctx, "MongoCountUsers")
	defer span.End()

	n, err := r.col(UsersCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fail(span, err, "Failed to count users")
	}
	return n, nil
}

// EnsureIndexes tạo các index cần thiết, gọi một lần khi khởi động.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ItemsCollection: {
			{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "order_index", Value: 1}}},
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
		AssignmentsCollection: {
			{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "worker_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		TransfersCollection: {{Keys: bson.D{{Key: "item_id", Value: 1}}}},
		ImagesCollection:    {{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "captured_at", Value: 1}}}},
		OrdersCollection:    {{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)}},
		UsersCollection:     {{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)}},
	}
	for name, idx := range indexes {
		if _, err := r.col(name).Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

var _ Repository = (*MongoRepository)(nil)
