// Package schema compiles CUE model declarations into the registry the filter
// compiler and connectors resolve paths against.
//
// A schema directory holds one CUE package with a top-level model struct:
//
//	model: article: {
//		collectionName: "articles"
//		orm:            "bookshelf"
//		attributes: {
//			title:  type: "string"
//			author: {model: "user", via: "articles"}
//			tags:   {collection: "tag", via: "articles"}
//		}
//	}
//
// Relations are declared by model (single side) or collection (many side)
// and classified into natures once every model is known.
package schema
