// Package model declares the Book document and the handle used to read and
// write books in a store collection.
package model

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stevemurr/plp-bookstore/schema"
)

type Book struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" yaml:"-"`
	Title         string             `bson:"title" yaml:"title"`
	Author        string             `bson:"author" yaml:"author"`
	Genre         string             `bson:"genre" yaml:"genre"`
	PublishedYear int                `bson:"published_year" yaml:"published_year"`
	Price         float64            `bson:"price" yaml:"price"`
	InStock       bool               `bson:"in_stock" yaml:"in_stock"`
	Pages         int                `bson:"pages" yaml:"pages"`
	Publisher     string             `bson:"publisher" yaml:"publisher"`
	CreatedAt     time.Time          `bson:"created_at,omitempty" yaml:"-"`
	UpdatedAt     time.Time          `bson:"updated_at,omitempty" yaml:"-"`
}

// BookSchema is the declared shape of a book document.
var BookSchema = schema.Schema{
	Name: "Book",
	Fields: []schema.Field{
		{Name: "title", Kind: schema.String},
		{Name: "author", Kind: schema.String},
		{Name: "genre", Kind: schema.String},
		{Name: "published_year", Kind: schema.Int},
		{Name: "price", Kind: schema.Number},
		{Name: "in_stock", Kind: schema.Bool},
		{Name: "pages", Kind: schema.Int},
		{Name: "publisher", Kind: schema.String},
	},
	Timestamps: true,
}

// DecodeBooks converts raw documents into books. Fields missing from a
// document are left at their zero value.
func DecodeBooks(docs []bson.M) ([]Book, error) {
	books := make([]Book, 0, len(docs))
	for i, d := range docs {
		raw, err := bson.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("book %d: %w", i, err)
		}
		var b Book
		if err := bson.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("book %d: %w", i, err)
		}
		books = append(books, b)
	}
	return books, nil
}
