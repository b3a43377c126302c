// Package queries implements the bookstore query operations and the runner
// that executes them in a fixed order.
package queries

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/stevemurr/plp-bookstore/model"
	"github.com/stevemurr/plp-bookstore/store"
)

// ErrInvalidPage is returned by Page for a page number or size below 1.
var ErrInvalidPage = errors.New("page and page size must be at least 1")

// GenreAverage is one row of the average-price-by-genre report.
type GenreAverage struct {
	Genre    string  `bson:"_id"`
	AvgPrice float64 `bson:"avgPrice"`
}

// AuthorCount is one row of the books-per-author report.
type AuthorCount struct {
	Author string `bson:"_id"`
	Count  int    `bson:"count"`
}

// DecadeCount is one row of the books-per-decade report.
type DecadeCount struct {
	Decade     int `bson:"_id"`
	TotalBooks int `bson:"totalBooks"`
}

func ByGenre(ctx context.Context, books *model.BookModel, genre string) ([]bson.M, error) {
	return books.Find(ctx, bson.D{{Key: "genre", Value: genre}}, store.FindOptions{})
}

// PublishedAfter returns books published strictly after year.
func PublishedAfter(ctx context.Context, books *model.BookModel, year int) ([]bson.M, error) {
	return books.Find(ctx, bson.D{{Key: "published_year", Value: bson.D{{Key: "$gt", Value: year}}}}, store.FindOptions{})
}

func ByAuthor(ctx context.Context, books *model.BookModel, author string) ([]bson.M, error) {
	return books.Find(ctx, bson.D{{Key: "author", Value: author}}, store.FindOptions{})
}

// UpdatePrice sets the price of the first book titled title.
func UpdatePrice(ctx context.Context, books *model.BookModel, title string, price float64) (store.UpdateResult, error) {
	return books.UpdateOne(ctx, bson.D{{Key: "title", Value: title}}, bson.D{{Key: "price", Value: price}})
}

// DeleteByTitle removes the first book titled title.
func DeleteByTitle(ctx context.Context, books *model.BookModel, title string) (int64, error) {
	return books.DeleteOne(ctx, bson.D{{Key: "title", Value: title}})
}

// InStockAfter returns title, author and price of in-stock books published
// strictly after year.
func InStockAfter(ctx context.Context, books *model.BookModel, year int) ([]bson.M, error) {
	filter := bson.D{
		{Key: "in_stock", Value: true},
		{Key: "published_year", Value: bson.D{{Key: "$gt", Value: year}}},
	}
	return books.Find(ctx, filter, store.FindOptions{
		Projection: bson.D{
			{Key: "title", Value: 1},
			{Key: "author", Value: 1},
			{Key: "price", Value: 1},
			{Key: "_id", Value: 0},
		},
	})
}

// SortedByPrice returns every book ordered by price.
func SortedByPrice(ctx context.Context, books *model.BookModel, ascending bool) ([]bson.M, error) {
	dir := -1
	if ascending {
		dir = 1
	}
	return books.Find(ctx, nil, store.FindOptions{Sort: bson.D{{Key: "price", Value: dir}}})
}

// Page returns the 1-based page of books in natural order.
func Page(ctx context.Context, books *model.BookModel, page, size int) ([]bson.M, error) {
	if page < 1 || size < 1 {
		return nil, fmt.Errorf("%w: page %d, size %d", ErrInvalidPage, page, size)
	}
	return books.Find(ctx, nil, store.FindOptions{
		Skip:  int64((page - 1) * size),
		Limit: int64(size),
	})
}

// AveragePriceByGenre returns the mean price per genre, highest first.
func AveragePriceByGenre(ctx context.Context, books *model.BookModel) ([]GenreAverage, error) {
	return aggregate[GenreAverage](ctx, books, []bson.D{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$genre"},
			{Key: "avgPrice", Value: bson.D{{Key: "$avg", Value: "$price"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: -1}}}},
	})
}

// TopAuthors returns the limit authors with the most books.
func TopAuthors(ctx context.Context, books *model.BookModel, limit int) ([]AuthorCount, error) {
	return aggregate[AuthorCount](ctx, books, []bson.D{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$author"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	})
}

// BooksByDecade counts books per publication decade, oldest first.
func BooksByDecade(ctx context.Context, books *model.BookModel) ([]DecadeCount, error) {
	decade := bson.D{{Key: "$multiply", Value: bson.A{
		bson.D{{Key: "$floor", Value: bson.D{{Key: "$divide", Value: bson.A{"$published_year", 10}}}}},
		10,
	}}}
	return aggregate[DecadeCount](ctx, books, []bson.D{
		{{Key: "$project", Value: bson.D{{Key: "decade", Value: decade}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$decade"},
			{Key: "totalBooks", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	})
}

func IndexTitle(ctx context.Context, books *model.BookModel) (string, error) {
	return books.CreateIndex(ctx, bson.D{{Key: "title", Value: 1}})
}

func IndexAuthorYear(ctx context.Context, books *model.BookModel) (string, error) {
	return books.CreateIndex(ctx, bson.D{{Key: "author", Value: 1}, {Key: "published_year", Value: 1}})
}

// ExplainTitle reports how a title lookup is executed.
func ExplainTitle(ctx context.Context, books *model.BookModel, title string) (*store.ExplainStats, error) {
	return books.Explain(ctx, bson.D{{Key: "title", Value: title}})
}

func aggregate[T any](ctx context.Context, books *model.BookModel, pipeline []bson.D) ([]T, error) {
	docs, err := books.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		raw, err := bson.Marshal(d)
		if err != nil {
			return nil, err
		}
		var row T
		if err := bson.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decode %T: %w", row, err)
		}
		out = append(out, row)
	}
	return out, nil
}
