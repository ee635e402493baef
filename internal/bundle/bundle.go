package bundle

import "errors"

// ErrBookNotInBundle is returned when a removal names a book the bundle does
// not contain. Removing an absent book is a caller error, not a no-op.
var ErrBookNotInBundle = errors.New("bundle does not contain that book")

// BookRef is a reference to a catalog book held inside a bundle.
type BookRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Bundle is a named, mutable collection of book references. Entries are
// unique by book id; order is preserved for display but not significant.
type Bundle struct {
	Name  string    `json:"name"`
	Books []BookRef `json:"books"`
}
