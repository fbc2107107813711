package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/store"
)

type accountsRepo struct {
	coll *mongo.Collection
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.coll.InsertOne(ctx, toAccountDoc(a))
	return mapError(err)
}

func (r *accountsRepo) find(ctx context.Context, filter bson.M) (domain.Account, error) {
	var d accountDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		return domain.Account{}, mapError(err)
	}
	return d.domain(), nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return r.find(ctx, bson.M{"_id": id})
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.find(ctx, bson.M{"email": email})
}

func (r *accountsRepo) GetAccountByRoleID(ctx context.Context, roleID string) (domain.Account, error) {
	return r.find(ctx, bson.M{"role_id": roleID})
}

func (r *accountsRepo) CountAccountsByRole(ctx context.Context, role domain.Role) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"role": string(role)})
	return int(n), mapError(err)
}

type ordersRepo struct {
	coll *mongo.Collection
}

func (r *ordersRepo) CreateOrder(ctx context.Context, o domain.Order) error {
	_, err := r.coll.InsertOne(ctx, toOrderDoc(o))
	return mapError(err)
}

func (r *ordersRepo) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	var d orderDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return domain.Order{}, mapError(err)
	}
	return d.domain(), nil
}

func (r *ordersRepo) ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	filter := bson.M{}
	if f.ClientID != "" {
		filter["client_id"] = f.ClientID
	}
	if f.DriverID != "" {
		filter["driver_id"] = f.DriverID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(store.NormalizeLimit(f.Limit))).
		SetSkip(int64(max(f.Offset, 0)))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError(err)
	}
	defer cur.Close(ctx)

	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.domain())
	}
	return out, nil
}

func (r *ordersRepo) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": at.UTC()}},
	)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	current, err := r.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: order %s is %s, not %s", store.ErrConflict, id, current.Status, from)
}

type notificationsRepo struct {
	coll *mongo.Collection
}

func (r *notificationsRepo) CreateNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.coll.InsertOne(ctx, notificationDoc{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		CreatedAt: n.CreatedAt.UTC(),
	})
	return mapError(err)
}

func (r *notificationsRepo) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(store.NormalizeLimit(limit)))

	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, mapError(err)
	}
	defer cur.Close(ctx)

	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.domain())
	}
	return out, nil
}
