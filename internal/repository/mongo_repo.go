package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go-chat-vault/internal/model"
)

const (
	usersCollection = "users"
	chatsCollection = "chat_threads"
)

type userDocument struct {
	ID                  string     `bson:"_id"`
	Name                string     `bson:"name"`
	Email               string     `bson:"email"`
	EmailLower          string     `bson:"email_lower"`
	PasswordHash        string     `bson:"password_hash"`
	ResetTokenHash      string     `bson:"reset_token_hash,omitempty"`
	ResetTokenExpiresAt *time.Time `bson:"reset_token_expires_at,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

func (d userDocument) toModel() model.User {
	return model.User{
		ID:                  d.ID,
		Name:                d.Name,
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		ResetTokenHash:      d.ResetTokenHash,
		ResetTokenExpiresAt: d.ResetTokenExpiresAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

type MongoUserRepository struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoUserRepository(db *mongo.Database, timeout time.Duration) *MongoUserRepository {
	return &MongoUserRepository{client: db.Client(), coll: db.Collection(usersCollection), timeout: timeout}
}

// EnsureIndexes creates the unique email index and the reset token lookup index.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email_lower", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "reset_token_hash", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return mongoError("create user indexes", err)
	}
	return nil
}

func (r *MongoUserRepository) Available(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx, nil) == nil
}

func (r *MongoUserRepository) Create(ctx context.Context, u model.User) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, userDocument{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		EmailLower:   emailKey(u.Email),
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrDuplicateEmail
	}
	if err != nil {
		return mongoError("create user", err)
	}
	return nil
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, model.ErrUserNotFound)
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, bson.M{"email_lower": emailKey(email)}, model.ErrUserNotFound)
}

func (r *MongoUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	count, err := r.coll.CountDocuments(ctx, bson.M{"email_lower": emailKey(email)}, options.Count().SetLimit(1))
	if err != nil {
		return false, mongoError("check email exists", err)
	}
	return count > 0, nil
}

func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.update(ctx, id, bson.M{
		"$set":   bson.M{"password_hash": passwordHash, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"reset_token_hash": "", "reset_token_expires_at": ""},
	})
}

func (r *MongoUserRepository) SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	return r.update(ctx, id, bson.M{
		"$set": bson.M{
			"reset_token_hash":       tokenHash,
			"reset_token_expires_at": expiresAt.UTC(),
			"updated_at":             time.Now().UTC(),
		},
	})
}

func (r *MongoUserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (model.User, error) {
	if tokenHash == "" {
		return model.User{}, model.ErrResetTokenNotFound
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"reset_token_hash":       tokenHash,
		"reset_token_expires_at": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{
		"$set":   bson.M{"password_hash": passwordHash, "updated_at": now.UTC()},
		"$unset": bson.M{"reset_token_hash": "", "reset_token_expires_at": ""},
	}

	var doc userDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, model.ErrResetTokenNotFound
	}
	if err != nil {
		return model.User{}, mongoError("consume reset token", err)
	}
	return doc.toModel(), nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, notFound error) (model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var doc userDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, notFound
	}
	if err != nil {
		return model.User{}, mongoError("find user", err)
	}
	return doc.toModel(), nil
}

func (r *MongoUserRepository) update(ctx context.Context, id string, update bson.M) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mongoError("update user", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

type chatDocument struct {
	ID        string          `bson:"_id"`
	OwnerID   string          `bson:"owner_id"`
	ChatID    string          `bson:"chat_id"`
	Title     string          `bson:"title"`
	Messages  []model.Message `bson:"messages"`
	Files     []model.FileRef `bson:"files"`
	Extra     bson.M          `bson:"extra,omitempty"`
	CreatedAt time.Time       `bson:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

func (d chatDocument) toModel() model.ChatThread {
	thread := model.ChatThread{
		ChatID:    d.ChatID,
		OwnerID:   d.OwnerID,
		Title:     d.Title,
		Messages:  d.Messages,
		Files:     d.Files,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if len(d.Extra) > 0 {
		thread.Extra = map[string]any(d.Extra)
	}
	return thread.Normalize()
}

type MongoChatRepository struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoChatRepository(db *mongo.Database, timeout time.Duration) *MongoChatRepository {
	return &MongoChatRepository{client: db.Client(), coll: db.Collection(chatsCollection), timeout: timeout}
}

func (r *MongoChatRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "chat_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return mongoError("create chat indexes", err)
	}
	return nil
}

func (r *MongoChatRepository) Available(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx, nil) == nil
}

// Upsert updates the document whose _id is derived from (owner, chat) with
// upsert enabled, so replace-or-insert is one server-side operation.
func (r *MongoChatRepository) Upsert(ctx context.Context, thread model.ChatThread) (model.ChatThread, error) {
	thread = thread.Normalize()

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"owner_id":   thread.OwnerID,
			"chat_id":    thread.ChatID,
			"title":      thread.Title,
			"messages":   thread.Messages,
			"files":      thread.Files,
			"extra":      bson.M(thread.Extra),
			"updated_at": thread.UpdatedAt,
		},
		"$setOnInsert": bson.M{"created_at": thread.UpdatedAt},
	}

	var doc chatDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": chatDocumentID(thread.OwnerID, thread.ChatID)}, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return model.ChatThread{}, mongoError("upsert chat thread", err)
	}
	return doc.toModel(), nil
}

func (r *MongoChatRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.ChatThread, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "chat_id", Value: 1}}))
	if err != nil {
		return nil, mongoError("list chat threads", err)
	}

	var docs []chatDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode chat threads", err)
	}

	threads := make([]model.ChatThread, 0, len(docs))
	for _, doc := range docs {
		threads = append(threads, doc.toModel())
	}
	return threads, nil
}

func (r *MongoChatRepository) Get(ctx context.Context, ownerID string, chatID string) (model.ChatThread, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var doc chatDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": chatDocumentID(ownerID, chatID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.ChatThread{}, model.ErrChatNotFound
	}
	if err != nil {
		return model.ChatThread{}, mongoError("get chat thread", err)
	}
	return doc.toModel(), nil
}

func (r *MongoChatRepository) Delete(ctx context.Context, ownerID string, chatID string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": chatDocumentID(ownerID, chatID)})
	if err != nil {
		return mongoError("delete chat thread", err)
	}
	if res.DeletedCount == 0 {
		return model.ErrChatNotFound
	}
	return nil
}

func chatDocumentID(ownerID string, chatID string) string {
	return strings.Join([]string{ownerID, chatID}, "/")
}
