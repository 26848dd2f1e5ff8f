package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/shelfkeeper/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBookRepository stores books in a MongoDB collection. Owners are
// resolved from the users collection on every read.
type MongoBookRepository struct {
	books *mongo.Collection
	users *mongo.Collection
}

func NewMongoBookRepository(db *mongo.Database) *MongoBookRepository {
	return &MongoBookRepository{
		books: db.Collection(booksCollection),
		users: db.Collection(usersCollection),
	}
}

// ValidID reports whether id is a well-formed book identifier (an ObjectID
// in hex form).
func (r *MongoBookRepository) ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (r *MongoBookRepository) List(ctx context.Context, filter types.BookFilter) ([]types.Book, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.books.Find(ctx, bookQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	var docs []bookDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	owners, err := r.owners(ctx, docs)
	if err != nil {
		return nil, err
	}
	books := make([]types.Book, 0, len(docs))
	for _, doc := range docs {
		books = append(books, doc.toBook(owners))
	}
	return books, nil
}

// bookQuery translates a filter into a MongoDB query document.
func bookQuery(filter types.BookFilter) bson.M {
	q := bson.M{}
	if filter.Author != nil {
		q["author"] = primitive.Regex{Pattern: regexp.QuoteMeta(*filter.Author), Options: "i"}
	}
	if filter.Genre != nil {
		q["genre"] = *filter.Genre
	}
	if filter.MinPages != nil {
		q["pages"] = bson.M{"$gte": *filter.MinPages}
	}
	return q
}

func (r *MongoBookRepository) Get(ctx context.Context, id string) (types.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Book{}, ErrNotFound
	}
	return r.resolve(ctx, r.books.FindOne(ctx, bson.M{"_id": oid}))
}

func (r *MongoBookRepository) Create(ctx context.Context, book types.Book) (types.Book, error) {
	ownerID, err := primitive.ObjectIDFromHex(book.OwnerID)
	if err != nil {
		return types.Book{}, ErrNotFound
	}

	now := time.Now().UTC()
	doc := bookDocument{
		ID:        primitive.NewObjectID(),
		Title:     book.Title,
		Author:    book.Author,
		Date:      book.Date,
		Genre:     book.Genre,
		Pages:     book.Pages,
		Editorial: book.Editorial,
		OwnerID:   ownerID,
		CoverKey:  book.CoverKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.books.InsertOne(ctx, doc); err != nil {
		return types.Book{}, err
	}

	owners, err := r.owners(ctx, []bookDocument{doc})
	if err != nil {
		return types.Book{}, err
	}
	return doc.toBook(owners), nil
}

// Update applies the non-nil fields of changes and returns the stored
// result. Unknown ids yield ErrNotFound.
func (r *MongoBookRepository) Update(ctx context.Context, id string, changes types.BookUpdate) (types.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Book{}, ErrNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if changes.Title != nil {
		set["title"] = *changes.Title
	}
	if changes.Author != nil {
		set["author"] = *changes.Author
	}
	if changes.Date != nil {
		set["date"] = *changes.Date
	}
	if changes.Genre != nil {
		set["genre"] = changes.Genre
	}
	if changes.Pages != nil {
		set["pages"] = *changes.Pages
	}
	if changes.Editorial != nil {
		set["editorial"] = *changes.Editorial
	}
	if changes.CoverKey != nil {
		set["cover_key"] = *changes.CoverKey
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return r.resolve(ctx, r.books.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts))
}

// Delete removes a book and returns it as it was before removal.
func (r *MongoBookRepository) Delete(ctx context.Context, id string) (types.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Book{}, ErrNotFound
	}
	return r.resolve(ctx, r.books.FindOneAndDelete(ctx, bson.M{"_id": oid}))
}

func (r *MongoBookRepository) resolve(ctx context.Context, res *mongo.SingleResult) (types.Book, error) {
	var doc bookDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Book{}, ErrNotFound
		}
		return types.Book{}, err
	}
	owners, err := r.owners(ctx, []bookDocument{doc})
	if err != nil {
		return types.Book{}, err
	}
	return doc.toBook(owners), nil
}

// owners loads the public projection of every distinct owner referenced by
// docs in a single query.
func (r *MongoBookRepository) owners(ctx context.Context, docs []bookDocument) (map[primitive.ObjectID]types.PublicUser, error) {
	owners := make(map[primitive.ObjectID]types.PublicUser)
	if len(docs) == 0 {
		return owners, nil
	}

	seen := make(map[primitive.ObjectID]struct{}, len(docs))
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, doc := range docs {
		if _, ok := seen[doc.OwnerID]; ok {
			continue
		}
		seen[doc.OwnerID] = struct{}{}
		ids = append(ids, doc.OwnerID)
	}

	opts := options.Find().SetProjection(bson.M{"username": 1, "email": 1})
	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	var users []userDocument
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		owners[u.ID] = types.PublicUser{ID: u.ID.Hex(), Username: u.Username, Email: u.Email}
	}
	return owners, nil
}

func (d bookDocument) toBook(owners map[primitive.ObjectID]types.PublicUser) types.Book {
	book := types.Book{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Author:    d.Author,
		Date:      d.Date.UTC(),
		Genre:     d.Genre,
		Pages:     d.Pages,
		Editorial: d.Editorial,
		OwnerID:   d.OwnerID.Hex(),
		CoverKey:  d.CoverKey,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if book.Genre == nil {
		book.Genre = []string{}
	}
	if owner, ok := owners[d.OwnerID]; ok {
		book.Owner = &owner
	}
	return book
}
