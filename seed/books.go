// Package seed holds the sample bookstore catalogue and loads a catalogue
// into a books collection.
package seed

import "github.com/stevemurr/plp-bookstore/model"

// Books returns the sample catalogue, in insertion order. Every call returns
// a fresh slice.
func Books() []model.Book {
	return []model.Book{
		{
			Title:         "The Spanish Love Deception",
			Author:        "Elena Armas",
			Genre:         "Romance",
			PublishedYear: 2021,
			Price:         17.99,
			InStock:       true,
			Pages:         448,
			Publisher:     "Simon & Schuster",
		},
		{
			Title:         "Verity",
			Author:        "Colleen Hoover",
			Genre:         "Psychological thriller",
			PublishedYear: 2018,
			Price:         10.99,
			InStock:       true,
			Pages:         324,
			Publisher:     "Grand Central Publishing",
		},
		{
			Title:         "It ends with Us",
			Author:        "Colleen Hoover",
			Genre:         "Romance",
			PublishedYear: 2016,
			Price:         9.99,
			InStock:       true,
			Pages:         376,
			Publisher:     "Atria Books",
		},
		{
			Title:         "It Begins with Us",
			Author:        "Colleen Hoover",
			Genre:         "Romance",
			PublishedYear: 2022,
			Price:         11.50,
			InStock:       false,
			Pages:         336,
			Publisher:     "Atria Books",
		},
		{
			Title:         "Archer's Voice",
			Author:        "Mia Sheridan",
			Genre:         "Romance",
			PublishedYear: 2014,
			Price:         14.99,
			InStock:       true,
			Pages:         377,
			Publisher:     "Hachette Book Group",
		},
		{
			Title:         "Ugly Love",
			Author:        "Colleen Hoover",
			Genre:         "Romance",
			PublishedYear: 2014,
			Price:         12.99,
			InStock:       true,
			Pages:         330,
			Publisher:     "Atria Books",
		},
		{
			Title:         "Twisted Love",
			Author:        "Ana Huang",
			Genre:         "Romance",
			PublishedYear: 2021,
			Price:         7.99,
			InStock:       true,
			Pages:         312,
			Publisher:     "Ana Huang",
		},
		{
			Title:         "If we ever meet again",
			Author:        "Ana Huang",
			Genre:         "Romance",
			PublishedYear: 2020,
			Price:         19.99,
			InStock:       true,
			Pages:         342,
			Publisher:     "Ana Huang",
		},
		{
			Title:         "1000 Boy Kisses",
			Author:        "Tillie Cole",
			Genre:         "Young Adult Romance",
			PublishedYear: 2016,
			Price:         8.50,
			InStock:       false,
			Pages:         320,
			Publisher:     "Penguin Books Limited",
		},
		{
			Title:         "Me before you",
			Author:        "Jojo Moyes",
			Genre:         "Romance",
			PublishedYear: 2012,
			Price:         10.99,
			InStock:       true,
			Pages:         197,
			Publisher:     "Pamela Dorman Books",
		},
		{
			Title:         "Anna and the french kiss",
			Author:        "Stephanie Perkins",
			Genre:         "Young adult",
			PublishedYear: 2010,
			Price:         12.50,
			InStock:       false,
			Pages:         372,
			Publisher:     "Dutton Juvenile",
		},
		{
			Title:         "Haunting Adeline",
			Author:        "H.D Carlton",
			Genre:         "Fiction",
			PublishedYear: 2021,
			Price:         9.99,
			InStock:       true,
			Pages:         185,
			Publisher:     "H.D Carlton",
		},
	}
}
